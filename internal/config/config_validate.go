// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mediatrack/notifier/internal/logging"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateBroker,
		c.validateRouter,
		c.validateFanout,
		c.validateRedis,
		c.validateWAL,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateBroker() error {
	b := c.Broker
	switch b.Transport {
	case TransportNATS:
		if !c.NATS.EmbeddedServer {
			if err := validateURL(c.NATS.URL, "nats", "tls"); err != nil {
				return fmt.Errorf("NATS_URL is invalid: %w", err)
			}
		}
		if c.NATS.StreamName == "" {
			return fmt.Errorf("NATS_STREAM_NAME is required")
		}
		for _, topic := range []string{b.RatingTopic, b.RecomputeTopic, b.DeadLetterTopic} {
			if strings.ContainsAny(topic, "*> ") {
				return fmt.Errorf("broker topic %q must be a literal NATS subject", topic)
			}
		}
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when BROKER_TRANSPORT=kafka")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("KAFKA_GROUP_ID is required when BROKER_TRANSPORT=kafka")
		}
	case TransportMemory:
	default:
		return fmt.Errorf("BROKER_TRANSPORT must be one of nats, kafka, memory; got %q", b.Transport)
	}

	if b.RatingTopic == "" || b.RecomputeTopic == "" || b.DeadLetterTopic == "" {
		return fmt.Errorf("broker rating, recompute and dead-letter topics are required")
	}
	if b.DeadLetterTopic == b.RatingTopic || b.DeadLetterTopic == b.RecomputeTopic {
		return fmt.Errorf("BROKER_DEAD_LETTER_TOPIC must differ from the event topics")
	}
	if b.Partitions < 1 {
		return fmt.Errorf("BROKER_PARTITIONS must be at least 1, got %d", b.Partitions)
	}
	if b.Replicas < 1 {
		return fmt.Errorf("BROKER_REPLICAS must be at least 1, got %d", b.Replicas)
	}
	if b.PublishQueueSize < 1 {
		return fmt.Errorf("BROKER_PUBLISH_QUEUE_SIZE must be at least 1, got %d", b.PublishQueueSize)
	}
	if b.PublishDrainTimeout <= 0 {
		return fmt.Errorf("BROKER_PUBLISH_DRAIN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRouter() error {
	r := c.Router
	if r.RetryMaxRetries < 0 {
		return fmt.Errorf("ROUTER_RETRY_MAX_RETRIES must not be negative, got %d", r.RetryMaxRetries)
	}
	if r.RetryMultiplier < 1 {
		return fmt.Errorf("ROUTER_RETRY_MULTIPLIER must be >= 1, got %v", r.RetryMultiplier)
	}
	if r.RetryMaxInterval < r.RetryInitialInterval {
		return fmt.Errorf("ROUTER_RETRY_MAX_INTERVAL (%v) is below the initial interval (%v)",
			r.RetryMaxInterval, r.RetryInitialInterval)
	}
	if r.ThrottlePerSecond < 0 {
		return fmt.Errorf("ROUTER_THROTTLE must not be negative, got %d", r.ThrottlePerSecond)
	}
	return nil
}

func (c *Config) validateFanout() error {
	if t := c.Fanout.DefaultThreshold; t < 0 || t > 10 {
		return fmt.Errorf("FANOUT_DEFAULT_THRESHOLD must be between 0 and 10, got %d", t)
	}
	if c.Notifications.FetchLimit < 1 {
		return fmt.Errorf("NOTIFICATIONS_FETCH_LIMIT must be at least 1, got %d", c.Notifications.FetchLimit)
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative, got %d", c.Redis.DB)
	}
	return nil
}

func (c *Config) validateWAL() error {
	if !c.WAL.Enabled {
		return nil
	}
	if c.WAL.Path == "" {
		return fmt.Errorf("WAL_PATH is required when WAL_ENABLED=true")
	}
	if c.WAL.RetryInterval <= 0 {
		return fmt.Errorf("WAL_RETRY_INTERVAL must be positive, got %v", c.WAL.RetryInterval)
	}
	if c.WAL.MaxRetries < 1 {
		return fmt.Errorf("WAL_MAX_RETRIES must be at least 1, got %d", c.WAL.MaxRetries)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not allowed (want one of %v)", u.Scheme, schemes)
}
