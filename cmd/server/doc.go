// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Command server runs the rating notification service.

Startup order:

 1. Configuration (koanf: defaults, config.yaml, environment)
 2. DuckDB schema, migrations and the dead-letter table
 3. Broker (NATS JetStream, embedded by default; Kafka; or in-memory)
 4. WAL outbox and recovery of events pending from the last run
 5. Rating and notification services, Redis unread counter if enabled
 6. Rating pipeline (fanout, aggregate recompute, dead letters)
 7. Health checks and the chi HTTP API
 8. Supervisor tree: data, messaging and api layers

SIGINT or SIGTERM cancels the tree. The HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT, the pipeline waits for in-flight messages up to
the router close timeout, and then the broker, WAL and database are closed.

Example:

	BROKER_TRANSPORT=memory DUCKDB_PATH=./notifier.duckdb ./server
*/
package main
