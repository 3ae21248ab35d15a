// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"context"
	"fmt"
	"time"

	"github.com/mediatrack/notifier/internal/logging"
)

// Publisher republishes a stored entry.
type Publisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, entry *Entry) error

// PublishEntry implements Publisher.
func (f PublisherFunc) PublishEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// RecoveryResult summarizes a startup recovery pass.
type RecoveryResult struct {
	TotalPending int
	Recovered    int
	Failed       int
	Expired      int
	Skipped      int
	Errors       []error
	Duration     time.Duration
}

// RecoverPending republishes every pending entry once. It runs at startup,
// before the retry loop, so events committed just before a crash are not
// left waiting for the first retry tick.
func (w *BadgerWAL) RecoverPending(ctx context.Context, publisher Publisher) (*RecoveryResult, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}

	start := time.Now()
	result := &RecoveryResult{}

	entries, err := w.GetPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}

	result.TotalPending = len(entries)
	if result.TotalPending == 0 {
		logging.Info().Msg("WAL recovery: no pending entries found")
		result.Duration = time.Since(start)
		return result, nil
	}

	logging.Info().Int("pending_entries", result.TotalPending).Msg("WAL recovery found pending entries")
	RecordWALRecoveredEntries(int64(result.TotalPending))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err)
			result.Duration = time.Since(start)
			return result, err
		}

		if !w.TryClaimEntry(entry.ID) {
			result.Skipped++
			continue
		}
		w.recoverEntry(ctx, entry, publisher, result)
		w.ReleaseEntry(entry.ID)
	}

	result.Duration = time.Since(start)
	logging.Info().
		Int("recovered", result.Recovered).
		Int("failed", result.Failed).
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("WAL recovery complete")
	return result, nil
}

func (w *BadgerWAL) recoverEntry(ctx context.Context, entry *Entry, publisher Publisher, result *RecoveryResult) {
	if w.config.EntryTTL > 0 && time.Since(entry.CreatedAt) > w.config.EntryTTL {
		if err := w.DeleteEntry(ctx, entry.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("delete expired entry %s: %w", entry.ID, err))
		}
		RecordWALExpiredEntry()
		result.Expired++
		return
	}

	if err := publisher.PublishEntry(ctx, entry); err != nil {
		logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("WAL recovery: publish failed, leaving for retry loop")
		if updateErr := w.UpdateAttempt(ctx, entry.ID, err.Error()); updateErr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("update attempt %s: %w", entry.ID, updateErr))
		}
		RecordWALPublishFailure()
		result.Failed++
		return
	}

	if err := w.Confirm(ctx, entry.ID); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("confirm entry %s: %w", entry.ID, err))
		result.Failed++
		return
	}
	result.Recovered++
}
