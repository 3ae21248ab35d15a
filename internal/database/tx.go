// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediatrack/notifier/internal/logging"
)

// Tx is a unit of work. Hooks registered with AfterCommit run after the
// underlying transaction commits and never after a rollback.
type Tx struct {
	tx    *sql.Tx
	db    *DB
	hooks []func(context.Context)
}

// AfterCommit schedules fn to run once the transaction has committed.
// Hooks run in registration order on the caller's goroutine, with a context
// that is no longer cancelled by the caller.
func (t *Tx) AfterCommit(fn func(context.Context)) {
	t.hooks = append(t.hooks, fn)
}

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query inside the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn in a transaction. A non-nil error (or panic) from fn rolls
// back and discards the registered hooks; otherwise the transaction commits
// and the hooks run.
func (db *DB) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, db: db}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("transaction rollback failed")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	tx.runAfterCommit(context.WithoutCancel(ctx))
	return nil
}

func (t *Tx) runAfterCommit(ctx context.Context) {
	for i, hook := range t.hooks {
		func() {
			defer func() {
				if p := recover(); p != nil {
					logging.Error().Interface("panic", p).Int("hook", i).Msg("after-commit hook panicked")
				}
			}()
			hook(ctx)
		}()
	}
}
