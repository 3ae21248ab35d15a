// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
	"github.com/mediatrack/notifier/internal/models"
)

// DeadLetterHandlerName is the name of the dead-letter consumer.
const DeadLetterHandlerName = "dead-letter"

const deadLetterIDPrefix = "dlq-"

// deadLetterPublisher gives a dead-lettered message an id of its own.
// Reusing the original id would let the stream's duplicate window swallow
// the dead-letter publish.
type deadLetterPublisher struct {
	pub message.Publisher
}

func newDeadLetterPublisher(pub message.Publisher) message.Publisher {
	return &deadLetterPublisher{pub: pub}
}

// Publish implements message.Publisher.
func (p *deadLetterPublisher) Publish(topic string, messages ...*message.Message) error {
	out := make([]*message.Message, 0, len(messages))
	for _, msg := range messages {
		dl := msg.Copy()
		dl.SetContext(msg.Context())
		dl.UUID = deadLetterIDPrefix + msg.UUID
		dl.Metadata.Set(natsgo.MsgIdHdr, dl.UUID)
		out = append(out, dl)
	}
	return p.pub.Publish(topic, out...)
}

// Close is a no-op; the broker owns the underlying publisher.
func (p *deadLetterPublisher) Close() error {
	return nil
}

// DeadLetterHandler is the terminal consumer of the dead-letter topic. It
// records every dead-lettered message and never fails, so nothing is ever
// redelivered from the dead-letter topic.
type DeadLetterHandler struct {
	store    DLQStore
	received atomic.Int64
	now      func() time.Time
}

// NewDeadLetterHandler creates the dead-letter consumer. A nil store only
// logs and counts.
func NewDeadLetterHandler(store DLQStore) *DeadLetterHandler {
	return &DeadLetterHandler{store: store, now: time.Now}
}

// Received returns how many dead-letter messages were consumed.
func (h *DeadLetterHandler) Received() int64 {
	return h.received.Load()
}

// Handle is the watermill entry point. It always returns nil.
func (h *DeadLetterHandler) Handle(msg *message.Message) error {
	ctx := msg.Context()
	h.received.Add(1)
	entry := NewDLQEntry(msg, h.now())

	logging.Ctx(ctx).Error().
		Str("message_uuid", entry.ID).
		Str("event_id", entry.EventID).
		Str("kind", entry.Kind).
		Str("topic", entry.Topic).
		Str("handler", entry.Handler).
		Str("category", entry.CategoryName).
		Str("reason", entry.Reason).
		Str("state", string(StateDeadLettered)).
		Msg("Message dead-lettered")

	if h.store == nil {
		metrics.RecordDLQEntry(entry.CategoryName)
		return nil
	}

	created, err := h.store.Save(ctx, entry)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("message_uuid", entry.ID).
			Msg("Failed to persist dead-letter entry")
		return nil
	}
	if created {
		metrics.RecordDLQEntry(entry.CategoryName)
	}
	return nil
}

// NewDLQEntry builds the stored form of a dead-lettered message from the
// metadata the poison queue attached.
func NewDLQEntry(msg *message.Message, at time.Time) *DLQEntry {
	md := make(map[string]string, len(msg.Metadata))
	for k, v := range msg.Metadata {
		md[k] = v
	}

	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	category := ParseErrorCategory(msg.Metadata.Get(MetadataErrorCategory))
	if category == ErrorCategoryUnknown {
		category = categorizeMessage(reason)
	}

	return &DLQEntry{
		ID:             msg.UUID,
		EventID:        msg.Metadata.Get(MetadataEventID),
		Kind:           msg.Metadata.Get(MetadataKind),
		PartitionKey:   msg.Metadata.Get(MetadataPartitionKey),
		Topic:          msg.Metadata.Get(middleware.PoisonedTopicKey),
		Handler:        msg.Metadata.Get(middleware.PoisonedHandlerKey),
		Reason:         reason,
		Category:       category,
		CategoryName:   category.String(),
		Payload:        string(msg.Payload),
		Metadata:       md,
		DeadLetteredAt: at,
	}
}

// replayDropKeys are not carried over to a replayed message.
var replayDropKeys = map[string]struct{}{
	middleware.ReasonForPoisonedKey:  {},
	middleware.PoisonedTopicKey:      {},
	middleware.PoisonedHandlerKey:    {},
	middleware.PoisonedSubscriberKey: {},
	MetadataErrorCategory:            {},
	natsgo.MsgIdHdr:                  {},
}

// DLQManager lists, replays and expires dead-letter entries.
type DLQManager struct {
	store     DLQStore
	broker    Broker
	topics    Topics
	limiter   *rate.Limiter
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewDLQManager creates a manager over store that republishes through
// broker.
func NewDLQManager(store DLQStore, broker Broker, topics Topics, cfg *config.DLQConfig) (*DLQManager, error) {
	if store == nil {
		return nil, errors.New("dlq store cannot be nil")
	}
	if broker == nil {
		return nil, errors.New("broker cannot be nil")
	}

	limit := rate.Inf
	if cfg.ReplayRatePerSecond > 0 {
		limit = rate.Limit(cfg.ReplayRatePerSecond)
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	return &DLQManager{
		store:     store,
		broker:    broker,
		topics:    topics,
		limiter:   rate.NewLimiter(limit, 1),
		retention: cfg.RetentionPeriod,
		interval:  interval,
		now:       time.Now,
	}, nil
}

// List returns up to limit entries, newest first.
func (m *DLQManager) List(ctx context.Context, limit int) ([]*DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return m.store.List(ctx, limit)
}

// Get returns one entry.
func (m *DLQManager) Get(ctx context.Context, id string) (*DLQEntry, error) {
	return m.store.Get(ctx, id)
}

// Delete discards an entry without replaying it.
func (m *DLQManager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.DLQMessagesRemoved.Inc()
	m.refreshGauges(ctx)
	return nil
}

// Replay republishes the payload of an entry to the topic of its kind. The
// replayed message gets a fresh id so the broker does not drop it as a
// duplicate of the original; notifications stay idempotent regardless.
func (m *DLQManager) Replay(ctx context.Context, id string) error {
	entry, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("replay rate limit: %w", err)
	}

	topic := m.broker.Route(m.topics.TopicFor(models.EventKind(entry.Kind)), entry.PartitionKey)
	msg := message.NewMessage(watermill.NewUUID(), []byte(entry.Payload))
	for k, v := range entry.Metadata {
		if _, drop := replayDropKeys[k]; !drop {
			msg.Metadata.Set(k, v)
		}
	}
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set(MetadataReplayOf, entry.ID)
	msg.SetContext(ctx)

	if err := m.broker.Publisher().Publish(topic, msg); err != nil {
		metrics.RecordDLQReplay(false)
		return fmt.Errorf("replay %s: %w", id, err)
	}
	metrics.RecordDLQReplay(true)

	if err := m.store.MarkReplayed(ctx, id, m.now()); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Str("dlq_id", id).
		Str("message_uuid", msg.UUID).
		Str("topic", topic).
		Msg("Dead-letter entry replayed")
	return nil
}

// Cleanup removes entries older than the retention period.
func (m *DLQManager) Cleanup(ctx context.Context) (int64, error) {
	if m.retention <= 0 {
		m.refreshGauges(ctx)
		return 0, nil
	}
	removed, err := m.store.DeleteExpired(ctx, m.now().Add(-m.retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		metrics.DLQMessagesExpired.Add(float64(removed))
		logging.Info().Int64("removed", removed).Msg("Expired dead-letter entries removed")
	}
	m.refreshGauges(ctx)
	return removed, nil
}

// RunCleanup expires entries every cleanup interval until ctx is done.
func (m *DLQManager) RunCleanup(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Cleanup(ctx); err != nil {
			logging.Warn().Err(err).Msg("Dead-letter cleanup failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *DLQManager) refreshGauges(ctx context.Context) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("Failed to read dead-letter stats")
		return
	}
	var age time.Duration
	if !stats.OldestEntry.IsZero() {
		age = m.now().Sub(stats.OldestEntry)
	}
	metrics.UpdateDLQGauges(stats.TotalEntries, age)
}
