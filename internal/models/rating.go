// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package models

import "time"

// Rating is one user's rating of one media item. A nil Value means the
// user cleared it.
type Rating struct {
	UserID        int64     `json:"userId"`
	MediaItemID   int64     `json:"mediaItemId"`
	Username      string    `json:"username"`
	MediaItemName string    `json:"mediaItemName"`
	Value         *int      `json:"rating"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MediaItemStats is the recomputed aggregate for a media item.
type MediaItemStats struct {
	MediaItemID   int64     `json:"mediaItemId"`
	RatingCount   int64     `json:"ratingCount"`
	AverageRating float64   `json:"averageRating"`
	RecomputedAt  time.Time `json:"recomputedAt"`
}
