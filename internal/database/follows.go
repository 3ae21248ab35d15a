// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"context"
	"fmt"

	"github.com/mediatrack/notifier/internal/models"
)

// Follow creates the relationship or, if it exists, updates its threshold.
// The returned CreatedAt is the original follow time in both cases.
func (db *DB) Follow(ctx context.Context, followerID, followingID int64, threshold int) (*models.FollowRelationship, error) {
	if followerID == followingID {
		return nil, ErrSelfFollow
	}
	if threshold < models.MinRating || threshold > models.MaxRating {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO follows (follower_id, following_id, minimum_rating_threshold, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (follower_id, following_id) DO UPDATE SET
			minimum_rating_threshold = excluded.minimum_rating_threshold`,
		followerID, followingID, threshold, db.now())
	if err != nil {
		return nil, fmt.Errorf("failed to follow: %w", err)
	}

	f := &models.FollowRelationship{FollowerID: followerID, FollowingID: followingID}
	err = db.conn.QueryRowContext(ctx, `
		SELECT minimum_rating_threshold, created_at FROM follows
		WHERE follower_id = ? AND following_id = ?`, followerID, followingID).
		Scan(&f.MinimumRatingThreshold, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read follow back: %w", err)
	}
	return f, nil
}

// UpdateThreshold returns ErrFollowNotFound when the relationship is absent.
func (db *DB) UpdateThreshold(ctx context.Context, followerID, followingID int64, threshold int) error {
	if threshold < models.MinRating || threshold > models.MaxRating {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE follows SET minimum_rating_threshold = ?
		WHERE follower_id = ? AND following_id = ?`, threshold, followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to update threshold: %w", err)
	}
	return requireOneRow(res, ErrFollowNotFound)
}

// Unfollow returns ErrFollowNotFound when the relationship is absent.
func (db *DB) Unfollow(ctx context.Context, followerID, followingID int64) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	return requireOneRow(res, ErrFollowNotFound)
}

// FindFollowersOf lists everyone following userID with their threshold.
// The result is a snapshot; follows added concurrently may be missed.
func (db *DB) FindFollowersOf(ctx context.Context, userID int64) ([]models.Follower, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT follower_id, minimum_rating_threshold
		FROM follows WHERE following_id = ?
		ORDER BY follower_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find followers: %w", err)
	}
	defer closeQuietly(rows)

	var followers []models.Follower
	for rows.Next() {
		var f models.Follower
		if err := rows.Scan(&f.FollowerID, &f.MinimumRatingThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		followers = append(followers, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate followers: %w", err)
	}
	return followers, nil
}

// ListFollowing returns the relationships owned by followerID.
func (db *DB) ListFollowing(ctx context.Context, followerID int64) ([]models.FollowRelationship, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT follower_id, following_id, minimum_rating_threshold, created_at
		FROM follows WHERE follower_id = ?
		ORDER BY following_id`, followerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	defer closeQuietly(rows)

	var out []models.FollowRelationship
	for rows.Next() {
		var f models.FollowRelationship
		if err := rows.Scan(&f.FollowerID, &f.FollowingID, &f.MinimumRatingThreshold, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
