// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"time"

	"github.com/mediatrack/notifier/internal/config"
)

// maxBackoff caps the delay between publish attempts of one entry.
const maxBackoff = 5 * time.Minute

// Config holds WAL configuration.
type Config struct {
	Enabled bool

	// Path is the BadgerDB directory.
	Path string

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// RetryInterval is how often the retry loop scans pending entries.
	RetryInterval time.Duration

	// MaxRetries is the number of failed publishes after which an entry is
	// dropped.
	MaxRetries int

	// RetryBackoff is the base of the per-entry exponential backoff.
	RetryBackoff time.Duration

	CompactInterval time.Duration

	// EntryTTL bounds how long an unconfirmed entry is kept.
	EntryTTL time.Duration

	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
	GCRatio          float64
	CloseTimeout     time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		Path:             "/data/wal",
		SyncWrites:       true,
		RetryInterval:    30 * time.Second,
		MaxRetries:       100,
		RetryBackoff:     5 * time.Second,
		CompactInterval:  time.Hour,
		EntryTTL:         72 * time.Hour,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// ConfigFrom overlays the wal section of the service configuration on the
// defaults.
func ConfigFrom(cfg *config.WALConfig) Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	if cfg.Path != "" {
		c.Path = cfg.Path
	}
	c.SyncWrites = cfg.SyncWrites
	if cfg.RetryInterval > 0 {
		c.RetryInterval = cfg.RetryInterval
	}
	if cfg.MaxRetries > 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	if cfg.EntryTTL > 0 {
		c.EntryTTL = cfg.EntryTTL
	}
	if cfg.CompactInterval > 0 {
		c.CompactInterval = cfg.CompactInterval
	}
	return c
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "WAL path is required"}
	}
	if c.RetryInterval < time.Second {
		return &ConfigError{Field: "RetryInterval", Message: "must be at least 1 second"}
	}
	if c.MaxRetries < 1 {
		return &ConfigError{Field: "MaxRetries", Message: "must be at least 1"}
	}
	if c.RetryBackoff < time.Second {
		return &ConfigError{Field: "RetryBackoff", Message: "must be at least 1 second"}
	}
	if c.CompactInterval < time.Minute {
		return &ConfigError{Field: "CompactInterval", Message: "must be at least 1 minute"}
	}
	if c.EntryTTL < time.Hour {
		return &ConfigError{Field: "EntryTTL", Message: "must be at least 1 hour"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "WAL config error: " + e.Field + ": " + e.Message
}
