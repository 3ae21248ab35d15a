// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package database is the DuckDB persistence layer for the rating
// notification service.
//
// # Tables
//
//   - ratings: the current rating per (user, media item); a NULL rating
//     means the user cleared it
//   - rating_history: every change, feeding the aggregate recompute
//   - follows: follower relationships with a per-follower threshold (0-10,
//     default 7)
//   - notifications: one row per (recipient, media item, rating), enforced by
//     a UNIQUE constraint so redelivered events cannot duplicate a row
//   - media_item_stats: count and average rating per media item
//
// # Files
//
//   - database.go: connection lifecycle and pool configuration
//   - database_schema.go: idempotent base schema
//   - migrations.go: versioned, append-only schema changes
//   - tx.go: WithTx and AfterCommit hooks
//   - ratings.go, follows.go, notifications.go: per-table operations
//
// # Transactions
//
// Writes whose side effects must not be observed before commit go through
// WithTx. Hooks registered with Tx.AfterCommit run only after a successful
// commit and never after a rollback.
//
// # Concurrency
//
// DuckDB uses optimistic concurrency control; conflicting writers fail with
// an error recognized by IsTransactionConflict and may be retried.
package database
