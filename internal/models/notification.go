// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package models

import (
	"fmt"
	"time"
)

// Notification tells a follower that someone they follow rated an item.
// At most one exists per (UserID, MediaItemID, Rating).
type Notification struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	Message       string    `json:"message"`
	MediaItemID   int64     `json:"mediaItemId"`
	Rating        int       `json:"rating"`
	RatedByUserID int64     `json:"ratedByUserId"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewNotification is the input to the notification store.
type NewNotification struct {
	RecipientID   int64
	Message       string
	MediaItemID   int64
	Rating        int
	RatedByUserID int64
}

// RatingMessage renders the notification text.
func RatingMessage(raterUsername, mediaItemName string, rating int) string {
	return fmt.Sprintf("%s rated '%s' with %d stars", raterUsername, mediaItemName, rating)
}

// UnreadCount is the body of the unread-count endpoint.
type UnreadCount struct {
	UserID int64 `json:"userId"`
	Count  int   `json:"count"`
	Limit  int   `json:"limit"`
}
