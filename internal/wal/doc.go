// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package wal is a BadgerDB outbox for rating events.
//
// An event is written to the WAL after its rating transaction commits and
// before it is handed to the broker. A successful publish confirms the
// entry; a failed one leaves it pending:
//
//	commit → WAL Write → broker publish → WAL Confirm
//	                          ↓ (on failure)
//	                    entry stays pending
//
// # Components
//
//   - BadgerWAL: pending and confirmed entries under separate key prefixes
//   - RecoverPending: republishes pending entries once at startup
//   - RetryLoop: republishes pending entries with exponential backoff,
//     dropping entries past MaxRetries or EntryTTL
//   - Compactor: removes confirmed and expired entries and runs value log GC
//
// # Usage
//
//	cfg := wal.ConfigFrom(&appCfg.WAL)
//	w, err := wal.Open(&cfg)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if _, err := w.RecoverPending(ctx, publisher); err != nil {
//	    return err
//	}
//	go wal.NewRetryLoop(w, publisher).Run(ctx)
//	go wal.NewCompactor(w).Run(ctx)
//
// Entries are claimed in memory while being published, so the inline
// publish and the retry loop never send the same entry at once. A publish
// that succeeds but whose Confirm fails is sent again; consumers rely on
// notification idempotency for that case.
package wal
