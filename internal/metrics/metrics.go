// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// Rating event pipeline
	RatingEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_events_published_total",
			Help: "Rating events handed to the broker after commit",
		},
		[]string{"kind", "result"}, // result: ok, failed, buffered
	)

	RatingEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_events_consumed_total",
			Help: "Rating event deliveries by handler and outcome",
		},
		[]string{"handler", "outcome"}, // outcome: completed, failed, skipped, poison
	)

	RatingEventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rating_event_processing_duration_seconds",
			Help:    "Time spent handling one delivery of a rating event",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"handler"},
	)

	FanoutFollowers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_followers",
			Help:    "Followers examined per fanned out rating",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications inserted",
		},
	)

	NotificationsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduplicated_total",
			Help: "Notification inserts that hit an existing row",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Cache operations that failed and fell back to the database",
		},
		[]string{"cache_type", "operation"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Dead Letter Queue Metrics
	DLQEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_entries_total",
			Help: "Current number of stored dead letters",
		},
	)

	DLQMessagesAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Messages dead-lettered",
		},
		[]string{"category"}, // connection, timeout, validation, database, capacity, unknown
	)

	DLQMessagesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_removed_total",
			Help: "Dead letters removed by an operator or after replay",
		},
	)

	DLQMessagesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_messages_expired_total",
			Help: "Dead letters removed by retention cleanup",
		},
	)

	DLQReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_replays_total",
			Help: "Dead letter replays by result",
		},
		[]string{"result"},
	)

	DLQOldestEntryAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest stored dead letter",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application build information",
		},
		[]string{"version", "go_version", "transport"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Seconds since the process started",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, classifyError(err)).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPublish records one post-commit publish attempt.
func RecordPublish(kind, result string) {
	RatingEventsPublished.WithLabelValues(kind, result).Inc()
}

// RecordDelivery records one handler invocation and how long it took.
func RecordDelivery(handler, outcome string, duration time.Duration) {
	RatingEventsConsumed.WithLabelValues(handler, outcome).Inc()
	RatingEventProcessingDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordNotification counts an insert or a deduplicated insert.
func RecordNotification(created bool) {
	if created {
		NotificationsCreated.Inc()
	} else {
		NotificationsDeduplicated.Inc()
	}
}

// RecordCacheLookup records a hit or a miss for cacheType.
func RecordCacheLookup(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// RecordDLQEntry records a message being dead-lettered
func RecordDLQEntry(category string) {
	DLQMessagesAdded.WithLabelValues(category).Inc()
}

// RecordDLQReplay records the outcome of a replay
func RecordDLQReplay(success bool) {
	if success {
		DLQReplays.WithLabelValues("success").Inc()
	} else {
		DLQReplays.WithLabelValues("failure").Inc()
	}
}

// UpdateDLQGauges updates DLQ gauge metrics with current stats
func UpdateDLQGauges(totalEntries int64, oldestEntryAge time.Duration) {
	DLQEntriesTotal.Set(float64(totalEntries))
	DLQOldestEntryAge.Set(oldestEntryAge.Seconds())
}

func classifyError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "conflict"):
		return "conflict"
	case strings.Contains(msg, "constraint"):
		return "constraint"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "other"
	}
}
