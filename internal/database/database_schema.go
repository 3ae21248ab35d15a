// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"context"
	"fmt"
)

// schemaStatements run in order on every start; each is idempotent.
// Timestamps are supplied by the application so no extension is needed for
// CURRENT_TIMESTAMP defaults.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS notifications_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS rating_history_id_seq START 1`,

	`CREATE TABLE IF NOT EXISTS ratings (
		user_id BIGINT NOT NULL,
		media_item_id BIGINT NOT NULL,
		username VARCHAR NOT NULL,
		media_item_name VARCHAR NOT NULL,
		rating INTEGER CHECK (rating IS NULL OR (rating >= 0 AND rating <= 10)),
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, media_item_id)
	)`,

	`CREATE TABLE IF NOT EXISTS rating_history (
		id BIGINT PRIMARY KEY DEFAULT nextval('rating_history_id_seq'),
		user_id BIGINT NOT NULL,
		media_item_id BIGINT NOT NULL,
		rating INTEGER,
		changed_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS follows (
		follower_id BIGINT NOT NULL,
		following_id BIGINT NOT NULL,
		minimum_rating_threshold INTEGER NOT NULL DEFAULT 7
			CHECK (minimum_rating_threshold >= 0 AND minimum_rating_threshold <= 10),
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (follower_id, following_id),
		CHECK (follower_id <> following_id)
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT PRIMARY KEY DEFAULT nextval('notifications_id_seq'),
		user_id BIGINT NOT NULL,
		message VARCHAR NOT NULL,
		media_item_id BIGINT NOT NULL,
		rating INTEGER NOT NULL,
		rated_by_user_id BIGINT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, media_item_id, rating)
	)`,

	`CREATE TABLE IF NOT EXISTS media_item_stats (
		media_item_id BIGINT PRIMARY KEY,
		rating_count BIGINT NOT NULL,
		average_rating DOUBLE NOT NULL,
		recomputed_at TIMESTAMP NOT NULL
	)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	if err := db.runMigrations(ctx); err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint after schema failed: %w", err)
	}
	return nil
}
