// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package metrics registers the Prometheus collectors for the notification
service and exposes small Record* helpers so call sites stay one line.

# Metrics Endpoint

Collectors are registered on the default registry with promauto and served
at /metrics by the API router:

	curl http://localhost:8080/metrics

# Available Metrics

Rating pipeline:
  - rating_events_published_total{kind,result}
  - rating_events_consumed_total{handler,outcome}
  - rating_event_processing_duration_seconds{handler}
  - fanout_followers
  - notifications_created_total, notifications_deduplicated_total

Dead letters:
  - dlq_entries_total, dlq_oldest_entry_age_seconds
  - dlq_messages_total{category}
  - dlq_messages_removed_total, dlq_messages_expired_total
  - dlq_replays_total{result}

HTTP, DuckDB, cache, WebSocket and circuit breaker collectors follow the
usual <subsystem>_<thing>_<unit> naming.
*/
package metrics
