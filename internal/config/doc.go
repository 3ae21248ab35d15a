// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package config loads and validates the notifier configuration.

# Configuration Sources

LoadWithKoanf layers three sources, later ones winning:

 1. Compiled-in defaults (defaultConfig)
 2. A YAML file: CONFIG_PATH, else ./config.yaml or /etc/mediatrack/config.yaml
 3. Environment variables listed in envMappings

Unknown environment variables are ignored.

# Environment Variables

HTTP Server:
  - HTTP_HOST, HTTP_PORT (default 8080), HTTP_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT

Database:
  - DUCKDB_PATH (default /data/mediatrack.duckdb), DUCKDB_MAX_MEMORY, DUCKDB_THREADS

Broker:
  - BROKER_TRANSPORT: nats (default), kafka or memory
  - BROKER_RATING_TOPIC, BROKER_RECOMPUTE_TOPIC, BROKER_DEAD_LETTER_TOPIC
  - BROKER_PARTITIONS: ordered lanes per topic (default 8)
  - BROKER_REPLICAS: replication factor (default 1)
  - BROKER_PUBLISH_QUEUE_SIZE: committed events queued per partition before rating writes block (default 256)
  - BROKER_PUBLISH_DRAIN_TIMEOUT: shutdown wait for queued events (default 10s)

NATS JetStream:
  - NATS_URL, NATS_EMBEDDED, NATS_EMBEDDED_PORT, NATS_STORE_DIR
  - NATS_STREAM_NAME, NATS_STREAM_MAX_AGE, NATS_DUPLICATE_WINDOW
  - NATS_DURABLE_PREFIX, NATS_ACK_WAIT, NATS_MAX_DELIVER

Kafka:
  - KAFKA_BROKERS (comma separated), KAFKA_GROUP_ID

Consumer retry:
  - ROUTER_RETRY_MAX_RETRIES: redeliveries after the first attempt (default 3)
  - ROUTER_RETRY_INITIAL_INTERVAL, ROUTER_RETRY_MAX_INTERVAL, ROUTER_RETRY_MULTIPLIER
  - ROUTER_THROTTLE, ROUTER_DEDUP_ENABLED, ROUTER_DEDUP_TTL

Notifications:
  - FANOUT_DEFAULT_THRESHOLD (default 7)
  - NOTIFICATIONS_FETCH_LIMIT (default 50)
  - REDIS_ENABLED, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_KEY_PREFIX, REDIS_COUNTER_TTL

Publish outbox:
  - WAL_ENABLED, WAL_PATH, WAL_SYNC_WRITES, WAL_RETRY_INTERVAL, WAL_MAX_RETRIES
  - WAL_ENTRY_TTL, WAL_COMPACT_INTERVAL

Dead letters:
  - DLQ_RETENTION_PERIOD, DLQ_CLEANUP_INTERVAL, DLQ_REPLAY_RATE

HTTP hardening and logging:
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("config: %v", err)
	}

# Thread Safety

A Config is not modified after LoadWithKoanf returns and may be shared
between goroutines.
*/
package config
