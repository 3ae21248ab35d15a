// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package config loads the service configuration.
//
// Values are layered with koanf: compiled-in defaults, then an optional YAML
// file (CONFIG_PATH, ./config.yaml or /etc/mediatrack/config.yaml), then
// environment variables. See LoadWithKoanf.
package config

import "time"

// Broker transports.
const (
	TransportNATS   = "nats"
	TransportKafka  = "kafka"
	TransportMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Broker        BrokerConfig        `koanf:"broker"`
	NATS          NATSConfig          `koanf:"nats"`
	Kafka         KafkaConfig         `koanf:"kafka"`
	Router        RouterConfig        `koanf:"router"`
	Fanout        FanoutConfig        `koanf:"fanout"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Redis         RedisConfig         `koanf:"redis"`
	WAL           WALConfig           `koanf:"wal"`
	DLQ           DLQConfig           `koanf:"dlq"`
	Security      SecurityConfig      `koanf:"security"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures DuckDB.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// BrokerConfig describes the rating topic independent of the transport.
type BrokerConfig struct {
	// Transport is nats, kafka or memory.
	Transport string `koanf:"transport"`

	RatingTopic     string `koanf:"rating_topic"`
	RecomputeTopic  string `koanf:"recompute_topic"`
	DeadLetterTopic string `koanf:"dead_letter_topic"`

	// Partitions is the number of ordered lanes. Events of one rater always
	// land in the same lane.
	Partitions int `koanf:"partitions"`

	// Replicas is the stream replication factor (NATS) or topic replication (Kafka).
	Replicas int `koanf:"replicas"`

	// PublishQueueSize bounds each partition's queue of committed events
	// waiting to be sent. Rating writes block only while it is full.
	PublishQueueSize int `koanf:"publish_queue_size"`

	// PublishDrainTimeout bounds how long shutdown waits for queued events.
	PublishDrainTimeout time.Duration `koanf:"publish_drain_timeout"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL             string        `koanf:"url"`
	EmbeddedServer  bool          `koanf:"embedded_server"`
	EmbeddedPort    int           `koanf:"embedded_port"`
	StoreDir        string        `koanf:"store_dir"`
	MaxMemory       int64         `koanf:"max_memory"`
	MaxStore        int64         `koanf:"max_store"`
	StreamName      string        `koanf:"stream_name"`
	StreamMaxAge    time.Duration `koanf:"stream_max_age"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
	DurablePrefix   string        `koanf:"durable_prefix"`
	AckWait         time.Duration `koanf:"ack_wait"`
	MaxDeliver      int           `koanf:"max_deliver"`
	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
}

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers      []string      `koanf:"brokers"`
	GroupID      string        `koanf:"group_id"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
	MinBytes     int           `koanf:"min_bytes"`
	MaxBytes     int           `koanf:"max_bytes"`
	MaxWait      time.Duration `koanf:"max_wait"`
}

// RouterConfig configures consumer retry and dead-lettering.
type RouterConfig struct {
	// RetryMaxRetries is the number of redeliveries after the first attempt.
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
	ThrottlePerSecond    int64         `koanf:"throttle_per_second"`
	DeduplicationEnabled bool          `koanf:"deduplication_enabled"`
	DeduplicationTTL     time.Duration `koanf:"deduplication_ttl"`
}

// FanoutConfig configures follower fanout.
type FanoutConfig struct {
	// DefaultThreshold is applied to new follows that do not set one.
	DefaultThreshold int `koanf:"default_threshold"`
}

// NotificationsConfig configures the read path.
type NotificationsConfig struct {
	// FetchLimit caps every list and count query.
	FetchLimit int `koanf:"fetch_limit"`
}

// RedisConfig configures the unread counter cache.
type RedisConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Addr       string        `koanf:"addr"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	KeyPrefix  string        `koanf:"key_prefix"`
	CounterTTL time.Duration `koanf:"counter_ttl"`
}

// WALConfig configures the publish outbox.
type WALConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Path            string        `koanf:"path"`
	SyncWrites      bool          `koanf:"sync_writes"`
	RetryInterval   time.Duration `koanf:"retry_interval"`
	MaxRetries      int           `koanf:"max_retries"`
	EntryTTL        time.Duration `koanf:"entry_ttl"`
	CompactInterval time.Duration `koanf:"compact_interval"`
}

// DLQConfig configures dead-letter retention and replay.
type DLQConfig struct {
	RetentionPeriod     time.Duration `koanf:"retention_period"`
	CleanupInterval     time.Duration `koanf:"cleanup_interval"`
	ReplayRatePerSecond float64       `koanf:"replay_rate_per_second"`
}

// SecurityConfig holds HTTP hardening settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/mediatrack.duckdb",
			MaxMemory: "1GB",
		},
		Broker: BrokerConfig{
			Transport:       TransportNATS,
			RatingTopic:     "ratings.rated",
			RecomputeTopic:  "ratings.recompute",
			DeadLetterTopic: "ratings.dlq",
			Partitions:      8,
			Replicas:        1,

			PublishQueueSize:    256,
			PublishDrainTimeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  true,
			EmbeddedPort:    4222,
			StoreDir:        "/data/nats/jetstream",
			MaxMemory:       256 << 20,
			MaxStore:        2 << 30,
			StreamName:      "RATINGS",
			StreamMaxAge:    7 * 24 * time.Hour,
			DuplicateWindow: 2 * time.Minute,
			DurablePrefix:   "fanout",
			AckWait:         30 * time.Second,
			MaxDeliver:      20,
			MaxReconnects:   -1,
			ReconnectWait:   2 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			GroupID:      "rating-fanout",
			BatchTimeout: 10 * time.Millisecond,
			MinBytes:     1,
			MaxBytes:     10 << 20,
			MaxWait:      500 * time.Millisecond,
		},
		Router: RouterConfig{
			RetryMaxRetries:      3,
			RetryInitialInterval: 200 * time.Millisecond,
			RetryMaxInterval:     5 * time.Second,
			RetryMultiplier:      2.0,
			CloseTimeout:         30 * time.Second,
			DeduplicationTTL:     5 * time.Minute,
		},
		Fanout: FanoutConfig{
			DefaultThreshold: 7,
		},
		Notifications: NotificationsConfig{
			FetchLimit: 50,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			KeyPrefix:  "notif:unread:",
			CounterTTL: 5 * time.Minute,
		},
		WAL: WALConfig{
			Path:            "/data/wal",
			SyncWrites:      true,
			RetryInterval:   30 * time.Second,
			MaxRetries:      100,
			EntryTTL:        72 * time.Hour,
			CompactInterval: time.Hour,
		},
		DLQ: DLQConfig{
			RetentionPeriod:     7 * 24 * time.Hour,
			CleanupInterval:     time.Hour,
			ReplayRatePerSecond: 10,
		},
		Security: SecurityConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the compiled-in defaults. Tests use it as a starting point.
func Default() *Config {
	return defaultConfig()
}
