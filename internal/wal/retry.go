// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"context"
	"math"
	"time"

	"github.com/mediatrack/notifier/internal/logging"
)

// RetryLoop periodically republishes pending entries with per-entry
// exponential backoff.
type RetryLoop struct {
	wal       *BadgerWAL
	publisher Publisher
	config    Config
	now       func() time.Time
}

// NewRetryLoop creates a retry loop over wal.
func NewRetryLoop(wal *BadgerWAL, publisher Publisher) *RetryLoop {
	return &RetryLoop{
		wal:       wal,
		publisher: publisher,
		config:    wal.GetConfig(),
		now:       time.Now,
	}
}

// Run scans pending entries every RetryInterval until ctx is done.
func (r *RetryLoop) Run(ctx context.Context) error {
	logging.Info().
		Dur("interval", r.config.RetryInterval).
		Int("max_retries", r.config.MaxRetries).
		Msg("WAL retry loop started")

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("WAL retry loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RetryPending(ctx)
		}
	}
}

type retryResult int

const (
	retryResultSuccess retryResult = iota
	retryResultFailed
	retryResultExpired
	retryResultMaxRetried
	retryResultSkipped
)

// RetryPending makes one pass over the pending entries.
func (r *RetryLoop) RetryPending(ctx context.Context) {
	entries, err := r.wal.GetPending(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("WAL retry: failed to get pending entries")
		return
	}
	if len(entries) == 0 {
		return
	}

	var success, failed, expired, maxRetried int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		switch r.processEntry(ctx, entry) {
		case retryResultSuccess:
			success++
		case retryResultFailed:
			failed++
		case retryResultExpired:
			expired++
		case retryResultMaxRetried:
			maxRetried++
		}
	}

	if success > 0 || failed > 0 || expired > 0 || maxRetried > 0 {
		logging.Info().
			Int("succeeded", success).
			Int("failed", failed).
			Int("expired", expired).
			Int("max_retried", maxRetried).
			Msg("WAL retry complete")
	}
}

func (r *RetryLoop) processEntry(ctx context.Context, entry *Entry) retryResult {
	if !r.wal.TryClaimEntry(entry.ID) {
		return retryResultSkipped
	}
	defer r.wal.ReleaseEntry(entry.ID)

	if r.now().Sub(entry.CreatedAt) > r.config.EntryTTL {
		logging.Info().Str("entry_id", entry.ID).Msg("WAL retry: entry expired, removing")
		if err := r.wal.DeleteEntry(ctx, entry.ID); err != nil {
			logging.Error().Err(err).Str("entry_id", entry.ID).Msg("WAL retry: failed to delete expired entry")
		}
		RecordWALExpiredEntry()
		return retryResultExpired
	}

	if entry.Attempts >= r.config.MaxRetries {
		logging.Error().
			Str("entry_id", entry.ID).
			Int("attempts", entry.Attempts).
			Msg("WAL retry: entry exceeded max retries, removing")
		if err := r.wal.DeleteEntry(ctx, entry.ID); err != nil {
			logging.Error().Err(err).Str("entry_id", entry.ID).Msg("WAL retry: failed to delete max-retried entry")
		}
		RecordWALMaxRetriesExceeded()
		return retryResultMaxRetried
	}

	if !r.isReadyForRetry(entry) {
		return retryResultSkipped
	}

	pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := r.publisher.PublishEntry(pubCtx, entry)
	cancel()
	if err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entry.ID).
			Int("attempt", entry.Attempts+1).
			Msg("WAL retry: failed to publish entry")
		if updateErr := r.wal.UpdateAttempt(ctx, entry.ID, err.Error()); updateErr != nil {
			logging.Error().Err(updateErr).Str("entry_id", entry.ID).Msg("WAL retry: failed to update attempt")
		}
		RecordWALPublishFailure()
		return retryResultFailed
	}

	if err := r.wal.Confirm(ctx, entry.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("WAL retry: failed to confirm entry")
		return retryResultFailed
	}
	return retryResultSuccess
}

func (r *RetryLoop) isReadyForRetry(entry *Entry) bool {
	if entry.LastAttemptAt.IsZero() {
		return true
	}
	return r.now().Sub(entry.LastAttemptAt) >= r.calculateBackoff(entry.Attempts)
}

// calculateBackoff doubles RetryBackoff per attempt, capped at maxBackoff.
func (r *RetryLoop) calculateBackoff(attempts int) time.Duration {
	if attempts > 50 {
		return maxBackoff
	}
	backoff := time.Duration(float64(r.config.RetryBackoff) * math.Pow(2, float64(attempts)))
	if backoff < 0 || backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}
