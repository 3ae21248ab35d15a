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
	"time"

	"github.com/mediatrack/notifier/internal/models"
)

// UpsertRating stores r; a nil Value clears the rating. UpdatedAt is set
// from the database clock.
func (t *Tx) UpsertRating(ctx context.Context, r *models.Rating) error {
	r.UpdatedAt = t.db.now()

	_, err := t.ExecContext(ctx, `
		INSERT INTO ratings (user_id, media_item_id, username, media_item_name, rating, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, media_item_id) DO UPDATE SET
			username = excluded.username,
			media_item_name = excluded.media_item_name,
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		r.UserID, r.MediaItemID, r.Username, r.MediaItemName, nullableRating(r.Value), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

// InsertRatingHistory appends the stored state of r to rating_history.
func (t *Tx) InsertRatingHistory(ctx context.Context, r *models.Rating) error {
	_, err := t.ExecContext(ctx, `
		INSERT INTO rating_history (user_id, media_item_id, rating, changed_at)
		VALUES (?, ?, ?, ?)`,
		r.UserID, r.MediaItemID, nullableRating(r.Value), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to record rating history: %w", err)
	}
	return nil
}

func nullableRating(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// GetRating returns ErrRatingNotFound when the user never rated the item.
func (db *DB) GetRating(ctx context.Context, userID, mediaItemID int64) (*models.Rating, error) {
	var (
		r     models.Rating
		value sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT user_id, media_item_id, username, media_item_name, rating, updated_at
		FROM ratings WHERE user_id = ? AND media_item_id = ?`,
		userID, mediaItemID).Scan(&r.UserID, &r.MediaItemID, &r.Username, &r.MediaItemName, &value, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating: %w", err)
	}
	if value.Valid {
		v := int(value.Int64)
		r.Value = &v
	}
	return &r, nil
}

// RatingChange is one rating_history row.
type RatingChange struct {
	Rating    *int      `json:"rating"`
	ChangedAt time.Time `json:"changedAt"`
}

// ListRatingHistory returns the changes of one rating, oldest first.
func (db *DB) ListRatingHistory(ctx context.Context, userID, mediaItemID int64, limit int) ([]RatingChange, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT rating, changed_at FROM rating_history
		WHERE user_id = ? AND media_item_id = ?
		ORDER BY id ASC LIMIT ?`, userID, mediaItemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating history: %w", err)
	}
	defer closeQuietly(rows)

	var out []RatingChange
	for rows.Next() {
		var (
			c     RatingChange
			value sql.NullInt64
		)
		if err := rows.Scan(&value, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rating history: %w", err)
		}
		if value.Valid {
			v := int(value.Int64)
			c.Rating = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecomputeMediaItemStats rebuilds the aggregate for one media item from
// the ratings table. Cleared ratings do not count.
func (db *DB) RecomputeMediaItemStats(ctx context.Context, mediaItemID int64) (*models.MediaItemStats, error) {
	stats := models.MediaItemStats{MediaItemID: mediaItemID, RecomputedAt: db.now()}

	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(rating), COALESCE(AVG(rating), 0)
		FROM ratings WHERE media_item_id = ?`, mediaItemID).Scan(&stats.RatingCount, &stats.AverageRating)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO media_item_stats (media_item_id, rating_count, average_rating, recomputed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (media_item_id) DO UPDATE SET
			rating_count = excluded.rating_count,
			average_rating = excluded.average_rating,
			recomputed_at = excluded.recomputed_at`,
		stats.MediaItemID, stats.RatingCount, stats.AverageRating, stats.RecomputedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to store media item stats: %w", err)
	}
	return &stats, nil
}

// GetMediaItemStats returns ErrStatsNotFound before the first recompute.
func (db *DB) GetMediaItemStats(ctx context.Context, mediaItemID int64) (*models.MediaItemStats, error) {
	var s models.MediaItemStats
	err := db.conn.QueryRowContext(ctx, `
		SELECT media_item_id, rating_count, average_rating, recomputed_at
		FROM media_item_stats WHERE media_item_id = ?`, mediaItemID).
		Scan(&s.MediaItemID, &s.RatingCount, &s.AverageRating, &s.RecomputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item stats: %w", err)
	}
	return &s, nil
}
