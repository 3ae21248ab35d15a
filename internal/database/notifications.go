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

	"github.com/mediatrack/notifier/internal/models"
)

const notificationColumns = `id, user_id, message, media_item_id, rating, rated_by_user_id, is_read, created_at`

// CreateNotification inserts n unless a notification with the same
// (recipient, media item, rating) exists. created is false for the
// duplicate case and the existing row is returned; that is not an error.
func (db *DB) CreateNotification(ctx context.Context, n models.NewNotification) (notif *models.Notification, created bool, err error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO notifications (user_id, message, media_item_id, rating, rated_by_user_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, false, ?)
		ON CONFLICT (user_id, media_item_id, rating) DO NOTHING`,
		n.RecipientID, n.Message, n.MediaItemID, n.Rating, n.RatedByUserID, db.now())
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	row := db.conn.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? AND media_item_id = ? AND rating = ?`,
		n.RecipientID, n.MediaItemID, n.Rating)
	notif, err = scanNotification(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read notification back: %w", err)
	}
	return notif, affected > 0, nil
}

// FindRecentNotifications returns the newest notifications first.
func (db *DB) FindRecentNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return db.queryNotifications(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
}

// FindUnreadNotifications returns the newest unread notifications first.
func (db *DB) FindUnreadNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	return db.queryNotifications(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? AND NOT is_read ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
}

// CountUnreadNotifications counts unread notifications, stopping at limit.
func (db *DB) CountUnreadNotifications(ctx context.Context, userID int64, limit int) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM (
			SELECT 1 FROM notifications WHERE user_id = ? AND NOT is_read LIMIT ?
		) AS bounded`, userID, limit).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead flags one notification. changed is false when it was
// already read. ErrNotificationNotFound covers ids owned by another user.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, notificationID int64) (changed bool, err error) {
	var isRead bool
	err = db.conn.QueryRowContext(ctx, `SELECT is_read FROM notifications WHERE id = ? AND user_id = ?`,
		notificationID, userID).Scan(&isRead)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotificationNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load notification: %w", err)
	}
	if isRead {
		return false, nil
	}

	res, err := db.conn.ExecContext(ctx, `UPDATE notifications SET is_read = true
		WHERE id = ? AND user_id = ? AND NOT is_read`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// MarkAllNotificationsRead returns how many notifications changed.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `UPDATE notifications SET is_read = true
		WHERE user_id = ? AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) queryNotifications(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer closeQuietly(rows)

	out := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(s rowScanner) (*models.Notification, error) {
	var n models.Notification
	if err := s.Scan(&n.ID, &n.UserID, &n.Message, &n.MediaItemID, &n.Rating,
		&n.RatedByUserID, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
