// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package ratings is the rating mutation path. A rating change is stored in
// one transaction and its events are handed to the broker only after that
// transaction commits.
package ratings

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediatrack/notifier/internal/database"
	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/validation"
)

var (
	// ErrNilPublisher is returned by NewService without a publisher.
	ErrNilPublisher = errors.New("event publisher is required")

	// ErrNilDatabase is returned by NewService without a database.
	ErrNilDatabase = errors.New("database is required")
)

// maxConflictAttempts bounds retries of a write that lost an optimistic
// concurrency race.
const maxConflictAttempts = 3

// Publisher hands a committed rating event to the broker. It runs inside
// the after-commit hook, so production wiring passes an
// eventprocessor.AsyncPublisher that only queues the event.
type Publisher interface {
	Publish(ctx context.Context, event *models.RatingEvent) error
}

// RateRequest is one user's new rating for one media item. A nil Rating
// clears it.
type RateRequest struct {
	UserID        int64  `json:"-" validate:"required,gt=0"`
	MediaItemID   int64  `json:"-" validate:"required,gt=0"`
	Username      string `json:"username" validate:"required,notblank,max=255"`
	MediaItemName string `json:"mediaItemName" validate:"required,notblank,max=500"`
	Rating        *int   `json:"rating" validate:"omitempty,min=0,max=10"`
}

// Service stores ratings and publishes their events after commit.
type Service struct {
	db        *database.DB
	publisher Publisher
}

// NewService wires the rating path.
func NewService(db *database.DB, publisher Publisher) (*Service, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	return &Service{db: db, publisher: publisher}, nil
}

// Rate upserts the rating. The caller's result never depends on the
// broker: publish failures are logged after the commit has succeeded.
func (s *Service) Rate(ctx context.Context, req RateRequest) (*models.Rating, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr
	}

	rating := &models.Rating{
		UserID:        req.UserID,
		MediaItemID:   req.MediaItemID,
		Username:      req.Username,
		MediaItemName: req.MediaItemName,
		Value:         req.Rating,
	}

	var err error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		err = s.store(ctx, rating)
		if !database.IsTransactionConflict(err) {
			break
		}
		logging.Ctx(ctx).Debug().Int("attempt", attempt).
			Int64("user_id", rating.UserID).
			Int64("media_item_id", rating.MediaItemID).
			Msg("rating write conflicted, retrying")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store rating: %w", err)
	}
	return rating, nil
}

// store runs one transaction; a rolled-back attempt drops its hook so a
// retried write publishes exactly once.
func (s *Service) store(ctx context.Context, rating *models.Rating) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := tx.UpsertRating(ctx, rating); err != nil {
			return err
		}

		events := eventsFor(rating)
		tx.AfterCommit(func(hookCtx context.Context) {
			for _, ev := range events {
				s.publish(hookCtx, ev)
			}
		})

		// Anything that fails from here on rolls back and drops the hook.
		return tx.InsertRatingHistory(ctx, rating)
	})
}

// ClearRating removes the value of an existing rating.
func (s *Service) ClearRating(ctx context.Context, userID, mediaItemID int64, username, mediaItemName string) (*models.Rating, error) {
	return s.Rate(ctx, RateRequest{
		UserID:        userID,
		MediaItemID:   mediaItemID,
		Username:      username,
		MediaItemName: mediaItemName,
	})
}

// eventsFor returns what a committed change announces: a rated event when
// there is a value, and always a recompute of the item's aggregate.
func eventsFor(r *models.Rating) []*models.RatingEvent {
	var events []*models.RatingEvent
	if r.Value != nil {
		events = append(events, models.NewRatedEvent(r.UserID, r.Username, r.MediaItemID, r.MediaItemName, *r.Value, r.UpdatedAt))
	}
	return append(events, models.NewRecomputeEvent(r.UserID, r.Username, r.MediaItemID, r.MediaItemName, r.UpdatedAt))
}

func (s *Service) publish(ctx context.Context, ev *models.RatingEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("event_id", ev.EventID).
			Str("kind", string(ev.Kind)).
			Int64("user_id", ev.UserID).
			Int64("media_item_id", ev.MediaItemID).
			Msg("rating committed but event publish failed")
	}
}
