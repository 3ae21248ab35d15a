// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package models

import "time"

// DefaultRatingThreshold applies when a follow does not choose one.
const DefaultRatingThreshold = 7

// FollowRelationship is owned by the follower.
type FollowRelationship struct {
	FollowerID             int64     `json:"followerId"`
	FollowingID            int64     `json:"followingId"`
	MinimumRatingThreshold int       `json:"minimumRatingThreshold"`
	CreatedAt              time.Time `json:"createdAt"`
}

// Follower is the projection the fanout reads.
type Follower struct {
	FollowerID             int64
	MinimumRatingThreshold int
}

// Wants reports whether a rating clears this follower's threshold.
func (f Follower) Wants(rating int) bool {
	return rating >= f.MinimumRatingThreshold
}
