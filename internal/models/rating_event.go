// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventKind separates events that should notify followers from events that
// only ask for the media item's aggregate to be recomputed.
type EventKind string

const (
	// EventKindRated is a rating with a value; it is fanned out to followers.
	EventKindRated EventKind = "rating.rated"

	// EventKindAggregateRecompute carries no fanout; a consumer recomputes
	// the media item's rating statistics.
	EventKindAggregateRecompute EventKind = "rating.aggregate_recompute"
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	return k == EventKindRated || k == EventKindAggregateRecompute
}

// Rating bounds.
const (
	MinRating = 0
	MaxRating = 10
)

// RatingEvent is the wire record for a committed rating change.
// UserID is the partition key: all events of one rater share a lane.
type RatingEvent struct {
	EventID       string    `json:"eventId,omitempty" validate:"omitempty,uuid"`
	Kind          EventKind `json:"kind,omitempty" validate:"omitempty,oneof=rating.rated rating.aggregate_recompute"`
	UserID        int64     `json:"userId" validate:"required,gt=0"`
	Username      string    `json:"username" validate:"required,max=255"`
	MediaItemID   int64     `json:"mediaItemId" validate:"required,gt=0"`
	MediaItemName string    `json:"mediaItemName" validate:"required,max=500"`
	Rating        *int      `json:"rating" validate:"omitempty,min=0,max=10"`
	Timestamp     time.Time `json:"timestamp" validate:"required"`
}

// NewRatedEvent builds the event published after a rating is stored.
func NewRatedEvent(userID int64, username string, mediaItemID int64, mediaItemName string, rating int, at time.Time) *RatingEvent {
	r := rating
	return &RatingEvent{
		EventID:       uuid.NewString(),
		Kind:          EventKindRated,
		UserID:        userID,
		Username:      username,
		MediaItemID:   mediaItemID,
		MediaItemName: mediaItemName,
		Rating:        &r,
		Timestamp:     at.UTC(),
	}
}

// NewRecomputeEvent builds the event that only triggers an aggregate recompute.
func NewRecomputeEvent(userID int64, username string, mediaItemID int64, mediaItemName string, at time.Time) *RatingEvent {
	return &RatingEvent{
		EventID:       uuid.NewString(),
		Kind:          EventKindAggregateRecompute,
		UserID:        userID,
		Username:      username,
		MediaItemID:   mediaItemID,
		MediaItemName: mediaItemName,
		Timestamp:     at.UTC(),
	}
}

// Normalize fills fields older producers leave empty. A record without a
// kind is classified by its rating: null means recompute only.
func (e *RatingEvent) Normalize() {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Kind == "" {
		if e.Rating == nil {
			e.Kind = EventKindAggregateRecompute
		} else {
			e.Kind = EventKindRated
		}
	}
}

// PartitionKey returns the ordering key: the rater's id.
func (e *RatingEvent) PartitionKey() string {
	return strconv.FormatInt(e.UserID, 10)
}

// ShouldFanOut is true only for rated events that carry a value.
func (e *RatingEvent) ShouldFanOut() bool {
	return e.Kind != EventKindAggregateRecompute && e.Rating != nil
}
