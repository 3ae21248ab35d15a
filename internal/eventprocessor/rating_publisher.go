// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/wal"
)

// EventPublisher sends committed rating events to the broker. Sends go
// through a circuit breaker so an unreachable broker fails fast instead of
// holding every request for the full publish timeout.
type EventPublisher struct {
	broker     Broker
	topics     Topics
	serializer *Serializer
	breaker    *gobreaker.CircuitBreaker[interface{}]
	outbox     *wal.BadgerWAL

	published atomic.Int64
	failed    atomic.Int64
	lastError atomic.Value
}

// NewEventPublisher creates a publisher. outbox may be nil, in which case a
// failed send is logged and the event is dropped.
func NewEventPublisher(broker Broker, topics Topics, breaker CircuitBreakerConfig, outbox *wal.BadgerWAL) (*EventPublisher, error) {
	if broker == nil {
		return nil, ErrNilPublisher
	}
	if topics.Rated == "" || topics.Recompute == "" {
		return nil, fmt.Errorf("%w: rated and recompute topics are required", ErrInvalidConfig)
	}
	if breaker.Name == "" {
		breaker = DefaultCircuitBreakerConfig("rating-publisher")
	}
	return &EventPublisher{
		broker:     broker,
		topics:     topics,
		serializer: NewSerializer(),
		breaker:    NewCircuitBreaker(breaker),
		outbox:     outbox,
	}, nil
}

// Publish validates and sends one event. With an outbox the event is
// written to it first and confirmed after the broker accepts it; an
// unconfirmed entry is republished by the outbox retry loop.
func (p *EventPublisher) Publish(ctx context.Context, event *models.RatingEvent) error {
	data, err := p.serializer.Marshal(event)
	if err != nil {
		metrics.RecordPublish(string(eventKind(event)), "invalid")
		return err
	}

	entryID := ""
	if p.outbox != nil {
		entryID, err = p.outbox.Write(ctx, event.EventID, event)
		if err != nil {
			// Still attempt the send; the outbox only adds a second chance.
			logging.Ctx(ctx).Error().Err(err).
				Str("event_id", event.EventID).
				Msg("Failed to write rating event to WAL")
			entryID = ""
		} else if p.outbox.TryClaimEntry(entryID) {
			defer p.outbox.ReleaseEntry(entryID)
		}
	}

	if err := p.send(ctx, event, data); err != nil {
		if entryID != "" {
			if updErr := p.outbox.UpdateAttempt(ctx, entryID, err.Error()); updErr != nil {
				logging.Ctx(ctx).Warn().Err(updErr).Str("event_id", event.EventID).Msg("Failed to record WAL attempt")
			}
		}
		return err
	}

	if entryID != "" {
		if err := p.outbox.Confirm(ctx, entryID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("event_id", event.EventID).Msg("Failed to confirm WAL entry")
		}
	}
	return nil
}

// PublishEntry republishes an outbox entry. It implements wal.Publisher.
func (p *EventPublisher) PublishEntry(ctx context.Context, entry *wal.Entry) error {
	var event models.RatingEvent
	if err := entry.UnmarshalPayload(&event); err != nil {
		return NewPermanentError("malformed WAL entry", err)
	}
	data, err := p.serializer.Marshal(&event)
	if err != nil {
		return err
	}
	return p.send(ctx, &event, data)
}

func (p *EventPublisher) send(ctx context.Context, event *models.RatingEvent, data []byte) error {
	key := event.PartitionKey()
	topic := p.broker.Route(p.topics.TopicFor(event.Kind), key)

	msg := newEventMessage(event.EventID, data)
	msg.Metadata.Set(MetadataKind, string(event.Kind))
	msg.Metadata.Set(MetadataPartitionKey, key)
	msg.Metadata.Set(MetadataUserID, key)
	msg.Metadata.Set(MetadataMediaItemID, strconv.FormatInt(event.MediaItemID, 10))
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	if lane, ok := partitionFromTopic(topic); ok {
		msg.Metadata.Set(MetadataPartition, strconv.Itoa(lane))
	}
	msg.SetContext(ctx)

	start := time.Now()
	_, err := ExecuteWithBreaker(p.breaker, func() (interface{}, error) {
		return nil, p.broker.Publisher().Publish(topic, msg)
	})
	if err != nil {
		p.failed.Add(1)
		p.lastError.Store(err.Error())
		result := "failed"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.RecordPublish(string(event.Kind), result)
		return fmt.Errorf("publish %s to %s: %w", event.EventID, topic, err)
	}

	p.published.Add(1)
	metrics.RecordPublish(string(event.Kind), "success")
	logging.Ctx(ctx).Debug().
		Str("event_id", event.EventID).
		Str("kind", string(event.Kind)).
		Int64("user_id", event.UserID).
		Int64("media_item_id", event.MediaItemID).
		Str("topic", topic).
		Dur("latency", time.Since(start)).
		Msg("Rating event published")
	return nil
}

// Published returns the number of events the broker accepted.
func (p *EventPublisher) Published() int64 {
	return p.published.Load()
}

// HealthCheck implements HealthCheckable. An open breaker is unhealthy, a
// half-open one degraded.
func (p *EventPublisher) HealthCheck(_ context.Context) ComponentHealth {
	state := p.breaker.State()
	health := ComponentHealth{
		Name:      "publisher",
		Healthy:   state != gobreaker.StateOpen,
		Degraded:  state == gobreaker.StateHalfOpen,
		LastCheck: time.Now(),
		Details: map[string]interface{}{
			"circuit_breaker": state.String(),
			"published":       p.published.Load(),
			"failed":          p.failed.Load(),
		},
	}
	if p.outbox != nil {
		stats := p.outbox.Stats()
		health.Details["wal_pending"] = stats.PendingCount
	}
	if !health.Healthy {
		health.Error = "circuit breaker is open"
		if last, ok := p.lastError.Load().(string); ok {
			health.Details["last_error"] = last
		}
	}
	return health
}

func eventKind(event *models.RatingEvent) models.EventKind {
	if event == nil {
		return ""
	}
	return event.Kind
}
