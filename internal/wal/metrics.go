// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	walWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_writes_total",
		Help: "Total number of events written to the WAL",
	})

	walConfirmsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_confirms_total",
		Help: "Total number of WAL entries confirmed as published",
	})

	walRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_retries_total",
		Help: "Total number of failed publish attempts recorded on WAL entries",
	})

	walPendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wal_pending_entries",
		Help: "Number of WAL entries awaiting publish",
	})

	walWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wal_write_latency_seconds",
		Help:    "Latency of WAL writes",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})

	walDBSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wal_db_size_bytes",
		Help: "Size of the WAL BadgerDB on disk",
	})

	walCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_compactions_total",
		Help: "Total number of WAL compaction passes",
	})

	walEntriesCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_entries_compacted_total",
		Help: "Total number of WAL entries removed by compaction",
	})

	walCompactionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wal_compaction_latency_seconds",
		Help:    "Duration of WAL compaction passes",
		Buckets: prometheus.DefBuckets,
	})

	walGCLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wal_gc_latency_seconds",
		Help:    "Duration of BadgerDB value log GC",
		Buckets: prometheus.DefBuckets,
	})

	walRecoveredEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_recovered_entries_total",
		Help: "Total number of pending entries found at startup recovery",
	})

	walWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_write_failures_total",
		Help: "Total number of failed WAL writes",
	})

	walPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_publish_failures_total",
		Help: "Total number of failed republishes of WAL entries",
	})

	walMaxRetriesExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_max_retries_exceeded_total",
		Help: "Total number of WAL entries dropped after exhausting retries",
	})

	walExpiredEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wal_expired_entries_total",
		Help: "Total number of WAL entries dropped after their TTL",
	})
)

// RecordWALWrite records a successful WAL write.
func RecordWALWrite() { walWritesTotal.Inc() }

// RecordWALConfirm records a confirmed entry.
func RecordWALConfirm() { walConfirmsTotal.Inc() }

// RecordWALRetry records a failed attempt on an entry.
func RecordWALRetry() { walRetriesTotal.Inc() }

// UpdateWALPendingEntries sets the pending entry gauge.
func UpdateWALPendingEntries(count int64) { walPendingEntries.Set(float64(count)) }

// RecordWALWriteLatency observes one write.
func RecordWALWriteLatency(seconds float64) { walWriteLatency.Observe(seconds) }

// UpdateWALDBSize sets the on-disk size gauge.
func UpdateWALDBSize(bytes int64) { walDBSizeBytes.Set(float64(bytes)) }

// RecordWALCompaction records one compaction pass.
func RecordWALCompaction(seconds float64, removed int64) {
	walCompactionsTotal.Inc()
	walCompactionLatency.Observe(seconds)
	if removed > 0 {
		walEntriesCompacted.Add(float64(removed))
	}
}

// RecordWALGCLatency observes one GC run.
func RecordWALGCLatency(seconds float64) { walGCLatency.Observe(seconds) }

// RecordWALRecoveredEntries counts entries found by startup recovery.
func RecordWALRecoveredEntries(count int64) { walRecoveredEntries.Add(float64(count)) }

// RecordWALWriteFailure records a failed write.
func RecordWALWriteFailure() { walWriteFailures.Inc() }

// RecordWALPublishFailure records a failed republish.
func RecordWALPublishFailure() { walPublishFailures.Inc() }

// RecordWALMaxRetriesExceeded records an entry dropped after MaxRetries.
func RecordWALMaxRetriesExceeded() { walMaxRetriesExceeded.Inc() }

// RecordWALExpiredEntry records an entry dropped after its TTL.
func RecordWALExpiredEntry() { walExpiredEntries.Inc() }
