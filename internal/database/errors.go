// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRatingNotFound       = errors.New("rating not found")
	ErrStatsNotFound        = errors.New("media item stats not found")
	ErrFollowNotFound       = errors.New("follow relationship not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrSelfFollow           = errors.New("users cannot follow themselves")
	ErrInvalidThreshold     = errors.New("threshold must be between 0 and 10")
)

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// IsTransactionConflict reports DuckDB optimistic-concurrency failures.
// They are safe to retry.
func IsTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Transaction conflict") ||
		strings.Contains(s, "Conflict on update") ||
		strings.Contains(s, "Conflict on tuple deletion")
}
