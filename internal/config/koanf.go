// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mediatrack/config.yaml",
	"/etc/mediatrack/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// LoadWithKoanf builds the configuration from defaults, the config file and
// the environment, in increasing priority, then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths accept comma separated strings from the environment.
var sliceConfigPaths = []string{
	"kafka.brokers",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config keys.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"broker_transport":             "broker.transport",
	"broker_rating_topic":          "broker.rating_topic",
	"broker_recompute_topic":       "broker.recompute_topic",
	"broker_dead_letter_topic":     "broker.dead_letter_topic",
	"broker_partitions":            "broker.partitions",
	"broker_replicas":              "broker.replicas",
	"broker_publish_queue_size":    "broker.publish_queue_size",
	"broker_publish_drain_timeout": "broker.publish_drain_timeout",

	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded_server",
	"nats_store_dir":        "nats.store_dir",
	"nats_max_memory":       "nats.max_memory",
	"nats_max_store":        "nats.max_store",
	"nats_stream_name":      "nats.stream_name",
	"nats_stream_max_age":   "nats.stream_max_age",
	"nats_duplicate_window": "nats.duplicate_window",
	"nats_durable_prefix":   "nats.durable_prefix",
	"nats_ack_wait":         "nats.ack_wait",
	"nats_max_deliver":      "nats.max_deliver",
	"nats_embedded_port":    "nats.embedded_port",

	"kafka_brokers":  "kafka.brokers",
	"kafka_group_id": "kafka.group_id",

	"router_retry_max_retries":      "router.retry_max_retries",
	"router_retry_initial_interval": "router.retry_initial_interval",
	"router_retry_max_interval":     "router.retry_max_interval",
	"router_retry_multiplier":       "router.retry_multiplier",
	"router_close_timeout":          "router.close_timeout",
	"router_throttle":               "router.throttle_per_second",
	"router_dedup_enabled":          "router.deduplication_enabled",
	"router_dedup_ttl":              "router.deduplication_ttl",

	"fanout_default_threshold":  "fanout.default_threshold",
	"notifications_fetch_limit": "notifications.fetch_limit",

	"redis_enabled":     "redis.enabled",
	"redis_addr":        "redis.addr",
	"redis_password":    "redis.password",
	"redis_db":          "redis.db",
	"redis_key_prefix":  "redis.key_prefix",
	"redis_counter_ttl": "redis.counter_ttl",

	"wal_enabled":          "wal.enabled",
	"wal_path":             "wal.path",
	"wal_sync_writes":      "wal.sync_writes",
	"wal_retry_interval":   "wal.retry_interval",
	"wal_max_retries":      "wal.max_retries",
	"wal_entry_ttl":        "wal.entry_ttl",
	"wal_compact_interval": "wal.compact_interval",

	"dlq_retention_period": "dlq.retention_period",
	"dlq_cleanup_interval": "dlq.cleanup_interval",
	"dlq_replay_rate":      "dlq.replay_rate_per_second",
	"rate_limit_requests":  "security.rate_limit_reqs",
	"rate_limit_window":    "security.rate_limit_window",
	"disable_rate_limit":   "security.rate_limit_disabled",
	"cors_origins":         "security.cors_origins",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
	"log_caller":           "logging.caller",
}

// envTransformFunc returns "" for unknown variables, which koanf skips.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
