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

	"github.com/mediatrack/notifier/internal/metrics"
	"github.com/mediatrack/notifier/internal/models"
)

// AggregateHandlerName is the handler name prefix used for metrics and logs.
const AggregateHandlerName = "aggregate"

// StatsRecomputer rebuilds a media item's rating aggregate.
type StatsRecomputer interface {
	RecomputeMediaItemStats(ctx context.Context, mediaItemID int64) (*models.MediaItemStats, error)
}

// AggregateHandler consumes recompute events. Recomputing is a full
// rebuild from the ratings table, so redelivery and reordering are harmless.
type AggregateHandler struct {
	stats      StatsRecomputer
	serializer *Serializer
}

// NewAggregateHandler creates the recompute consumer.
func NewAggregateHandler(stats StatsRecomputer) (*AggregateHandler, error) {
	if stats == nil {
		return nil, errors.New("stats recomputer cannot be nil")
	}
	return &AggregateHandler{stats: stats, serializer: NewSerializer()}, nil
}

// Handle is the watermill entry point.
func (h *AggregateHandler) Handle(msg *message.Message) error {
	start := time.Now()
	ctx := msg.Context()

	event, err := h.serializer.Unmarshal(msg.Payload)
	if err != nil {
		metrics.RecordDelivery(AggregateHandlerName, "poison", time.Since(start))
		return err
	}

	stats, err := h.stats.RecomputeMediaItemStats(ctx, event.MediaItemID)
	if err != nil {
		metrics.RecordDelivery(AggregateHandlerName, "failed", time.Since(start))
		return NewRetryableError(fmt.Sprintf("recompute stats of media item %d", event.MediaItemID), err)
	}

	metrics.RecordDelivery(AggregateHandlerName, "completed", time.Since(start))
	log := eventLogger(ctx, event)
	log.Debug().
		Int64("rating_count", stats.RatingCount).
		Float64("average_rating", stats.AverageRating).
		Msg("Media item stats recomputed")
	return nil
}
