// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
	"github.com/mediatrack/notifier/internal/models"
)

// FanoutHandlerName is the handler name prefix used for metrics and logs.
const FanoutHandlerName = "fanout"

// FollowerSource resolves who follows a rater.
type FollowerSource interface {
	FindFollowersOf(ctx context.Context, userID int64) ([]models.Follower, error)
}

// NotificationCreator stores one notification. A duplicate is reported with
// created=false and a nil error.
type NotificationCreator interface {
	Create(ctx context.Context, n models.NewNotification) (*models.Notification, bool, error)
}

// FanoutResult summarizes one processed event.
type FanoutResult struct {
	Followers  int
	Created    int
	Duplicates int
	Skipped    int
}

// FanoutHandler turns a rating event into notifications for the rater's
// followers whose threshold the rating reaches.
type FanoutHandler struct {
	followers  FollowerSource
	notifier   NotificationCreator
	serializer *Serializer
}

// NewFanoutHandler creates the fanout consumer.
func NewFanoutHandler(followers FollowerSource, notifier NotificationCreator) (*FanoutHandler, error) {
	if followers == nil {
		return nil, errors.New("follower source cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("notification creator cannot be nil")
	}
	return &FanoutHandler{
		followers:  followers,
		notifier:   notifier,
		serializer: NewSerializer(),
	}, nil
}

// Handle is the watermill entry point. Returning an error nacks the
// message into the retry middleware.
func (h *FanoutHandler) Handle(msg *message.Message) error {
	start := time.Now()
	ctx := msg.Context()

	event, err := h.serializer.Unmarshal(msg.Payload)
	if err != nil {
		metrics.RecordDelivery(FanoutHandlerName, "poison", time.Since(start))
		logging.Ctx(ctx).Error().Err(err).
			Str("message_uuid", msg.UUID).
			Str("state", string(StateDeadLettered)).
			Msg("Undecodable rating event")
		return err
	}

	log := eventLogger(ctx, event)
	log.Debug().Str("state", string(StateProcessing)).Msg("Fanning out rating")

	result, err := h.Process(ctx, event)
	if err != nil {
		metrics.RecordDelivery(FanoutHandlerName, "failed", time.Since(start))
		log.Warn().Err(err).Str("state", string(StateRetry)).Msg("Fanout failed")
		return err
	}

	outcome := "completed"
	if !event.ShouldFanOut() {
		outcome = "skipped"
	}
	metrics.RecordDelivery(FanoutHandlerName, outcome, time.Since(start))
	log.Debug().
		Str("state", string(StateCompleted)).
		Int("followers", result.Followers).
		Int("created", result.Created).
		Int("duplicates", result.Duplicates).
		Msg("Fanout complete")
	return nil
}

// Process runs the fanout for a decoded event. Any follower failure fails
// the whole event; notifications already written are deduplicated on the
// next attempt.
func (h *FanoutHandler) Process(ctx context.Context, event *models.RatingEvent) (FanoutResult, error) {
	var result FanoutResult
	if !event.ShouldFanOut() {
		return result, nil
	}
	rating := *event.Rating

	followers, err := h.followers.FindFollowersOf(ctx, event.UserID)
	if err != nil {
		return result, NewRetryableError(fmt.Sprintf("resolve followers of user %d", event.UserID), err)
	}
	result.Followers = len(followers)
	metrics.FanoutFollowers.Observe(float64(len(followers)))

	for _, f := range followers {
		if f.FollowerID == event.UserID || !f.Wants(rating) {
			result.Skipped++
			continue
		}

		_, created, err := h.notifier.Create(ctx, models.NewNotification{
			RecipientID:   f.FollowerID,
			Message:       models.RatingMessage(event.Username, event.MediaItemName, rating),
			MediaItemID:   event.MediaItemID,
			Rating:        rating,
			RatedByUserID: event.UserID,
		})
		if err != nil {
			return result, NewRetryableError(fmt.Sprintf("notify follower %d", f.FollowerID), err)
		}
		if created {
			result.Created++
		} else {
			result.Duplicates++
		}
	}
	return result, nil
}

func eventLogger(ctx context.Context, event *models.RatingEvent) zerolog.Logger {
	return logging.Ctx(ctx).With().
		Str("event_id", event.EventID).
		Str("kind", string(event.Kind)).
		Int64("user_id", event.UserID).
		Int64("media_item_id", event.MediaItemID).
		Logger()
}
