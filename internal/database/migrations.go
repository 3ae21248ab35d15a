// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mediatrack/notifier/internal/logging"
)

// Migration is one versioned schema change applied after the base schema.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR,
	applied_at TIMESTAMP NOT NULL
)`

// migrations is append-only. Never edit or remove an entry that has shipped.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "notifications_user_created_idx",
		Description: "Index the per-user notification listing",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at)`,
	},
	{
		Version:     2,
		Name:        "follows_following_idx",
		Description: "Index follower lookups by the rated user",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_follows_following ON follows (following_id)`,
	},
	{
		Version:     3,
		Name:        "rating_history_item_idx",
		Description: "Index rating history by media item for aggregate recomputes",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_rating_history_item ON rating_history (media_item_id, changed_at)`,
	},
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	history, err := db.migrationHistory(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[int]Migration, len(history))
	for _, m := range history {
		applied[m.Version] = m
	}
	return applied, nil
}

// runMigrations applies every migration not yet recorded in
// schema_migrations, in version order.
func (db *DB) runMigrations(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
			m.Version, m.Name, m.Description, db.now()); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		count++
	}

	if count > 0 {
		logging.Info().Int("applied", count).Msg("database migrations applied")
	}
	return nil
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// GetMigrationHistory returns the applied migrations in order.
func (db *DB) GetMigrationHistory(ctx context.Context) ([]Migration, error) {
	return db.migrationHistory(ctx)
}

func (db *DB) migrationHistory(ctx context.Context) ([]Migration, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, name, COALESCE(description, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer rows.Close()

	var history []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}
