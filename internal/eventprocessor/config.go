// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"time"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/models"
)

// Topics names the three channels of the pipeline.
type Topics struct {
	Rated      string
	Recompute  string
	DeadLetter string
}

// TopicsFromConfig reads topic names from the broker section.
func TopicsFromConfig(cfg *config.BrokerConfig) Topics {
	return Topics{
		Rated:      cfg.RatingTopic,
		Recompute:  cfg.RecomputeTopic,
		DeadLetter: cfg.DeadLetterTopic,
	}
}

// TopicFor returns the topic an event of kind is published to.
func (t Topics) TopicFor(kind models.EventKind) string {
	if kind == models.EventKindAggregateRecompute {
		return t.Recompute
	}
	return t.Rated
}

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// ServerConfigFrom builds the embedded server settings. Port -1 picks a
// random free port.
func ServerConfigFrom(cfg *config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              cfg.EmbeddedPort,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   cfg.MaxMemory,
		JetStreamMaxStore: cfg.MaxStore,
	}
}

// StreamConfig defines the rating event stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// StreamConfigFrom derives the stream from the broker topics. Partitioned
// topics are captured with a trailing wildcard.
func StreamConfigFrom(broker *config.BrokerConfig, nats *config.NATSConfig) StreamConfig {
	return StreamConfig{
		Name: nats.StreamName,
		Subjects: []string{
			broker.RatingTopic + ".>",
			broker.RecomputeTopic + ".>",
			broker.DeadLetterTopic,
		},
		MaxAge:          nats.StreamMaxAge,
		MaxBytes:        nats.MaxStore,
		MaxMsgs:         -1,
		DuplicateWindow: nats.DuplicateWindow,
		Replicas:        broker.Replicas,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
