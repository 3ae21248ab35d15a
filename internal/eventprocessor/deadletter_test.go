// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"

	"github.com/mediatrack/notifier/internal/config"
)

// recordingPublisher keeps what it was asked to publish.
type recordingPublisher struct {
	topic    string
	messages []*message.Message
	err      error
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.topic = topic
	p.messages = append(p.messages, messages...)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestDeadLetterPublisher_FreshID(t *testing.T) {
	t.Parallel()
	rec := &recordingPublisher{}
	pub := newDeadLetterPublisher(rec)

	msg := newEventMessage("evt-1", []byte("{}"))
	if err := pub.Publish("ratings.dlq", msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(rec.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(rec.messages))
	}
	got := rec.messages[0]
	if got.UUID != "dlq-evt-1" {
		t.Errorf("UUID = %q, want dlq-evt-1", got.UUID)
	}
	if got.Metadata.Get(natsgo.MsgIdHdr) != "dlq-evt-1" {
		t.Errorf("Msg-Id = %q, want dlq-evt-1", got.Metadata.Get(natsgo.MsgIdHdr))
	}
	if got.Metadata.Get(MetadataEventID) != "evt-1" {
		t.Error("event id metadata should be kept")
	}
	if msg.UUID != "evt-1" || msg.Metadata.Get(natsgo.MsgIdHdr) != "evt-1" {
		t.Error("original message must not be modified")
	}
}

func TestNewDLQEntry(t *testing.T) {
	t.Parallel()
	at := time.Now()

	msg := message.NewMessage("dlq-evt-1", []byte("payload"))
	msg.Metadata.Set(MetadataEventID, "evt-1")
	msg.Metadata.Set(MetadataKind, "rating.rated")
	msg.Metadata.Set(MetadataPartitionKey, "42")
	msg.Metadata.Set(middleware.PoisonedTopicKey, "ratings.rated.p1")
	msg.Metadata.Set(middleware.PoisonedHandlerKey, "fanout-p1")
	msg.Metadata.Set(middleware.ReasonForPoisonedKey, "notify follower 3: connection refused")

	entry := NewDLQEntry(msg, at)
	if entry.ID != "dlq-evt-1" || entry.EventID != "evt-1" || entry.PartitionKey != "42" {
		t.Errorf("identity = %+v", entry)
	}
	if entry.Topic != "ratings.rated.p1" || entry.Handler != "fanout-p1" {
		t.Errorf("origin = %q/%q", entry.Topic, entry.Handler)
	}
	if entry.Category != ErrorCategoryConnection {
		t.Errorf("Category = %v, want connection from reason", entry.Category)
	}

	msg.Metadata.Set(MetadataErrorCategory, "validation")
	if got := NewDLQEntry(msg, at).Category; got != ErrorCategoryValidation {
		t.Errorf("Category with metadata = %v, want validation", got)
	}
}

func TestDeadLetterHandler(t *testing.T) {
	t.Parallel()

	t.Run("stores once and never fails", func(t *testing.T) {
		store := newMemDLQStore()
		h := NewDeadLetterHandler(store)
		msg := message.NewMessage("dlq-1", []byte("x"))

		for i := 0; i < 2; i++ {
			if err := h.Handle(msg); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
		}
		if h.Received() != 2 {
			t.Errorf("Received() = %d, want 2", h.Received())
		}
		if got := len(store.all()); got != 1 {
			t.Errorf("stored entries = %d, want 1", got)
		}
	})

	t.Run("nil store", func(t *testing.T) {
		h := NewDeadLetterHandler(nil)
		if err := h.Handle(message.NewMessage("dlq-2", nil)); err != nil {
			t.Errorf("Handle() error = %v", err)
		}
	})
}

func TestDLQManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	store := newMemDLQStore()
	for id, age := range map[string]time.Duration{"fresh": time.Hour, "stale": 10 * 24 * time.Hour} {
		e := testDLQEntry(id, now.Add(-age))
		e.Metadata = map[string]string{
			MetadataKind:                    "rating.rated",
			MetadataCorrelationID:           "corr-1",
			middleware.ReasonForPoisonedKey: "boom",
			natsgo.MsgIdHdr:                 "dlq-x",
		}
		if _, err := store.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	broker := NewMemoryBroker(4, nil)
	defer broker.Close()
	manager, err := NewDLQManager(store, broker, testTopics, &config.DLQConfig{RetentionPeriod: 7 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("NewDLQManager() error = %v", err)
	}
	manager.now = func() time.Time { return now }

	list, err := manager.List(ctx, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("List() = %d entries, %v", len(list), err)
	}

	removed, err := manager.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if _, err := manager.Get(ctx, "stale"); !errors.Is(err, ErrDLQEntryNotFound) {
		t.Errorf("Get(stale) error = %v, want not found", err)
	}

	if err := manager.Replay(ctx, "missing"); !errors.Is(err, ErrDLQEntryNotFound) {
		t.Errorf("Replay(missing) error = %v", err)
	}
	if err := manager.Delete(ctx, "fresh"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := manager.Delete(ctx, "fresh"); !errors.Is(err, ErrDLQEntryNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestDLQManager_ReplayMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newMemDLQStore()
	e := testDLQEntry("dlq-evt-9", time.Now())
	e.PartitionKey = "9"
	e.Metadata = map[string]string{
		MetadataKind:                    "rating.rated",
		MetadataEventID:                 "evt-9",
		MetadataErrorCategory:           "connection",
		middleware.ReasonForPoisonedKey: "boom",
		natsgo.MsgIdHdr:                 "dlq-evt-9",
	}
	if _, err := store.Save(ctx, e); err != nil {
		t.Fatal(err)
	}

	broker := &recordingBroker{MemoryBroker: NewMemoryBroker(4, nil), pub: &recordingPublisher{}}
	defer broker.Close()
	manager, err := NewDLQManager(store, broker, testTopics, &config.DLQConfig{})
	if err != nil {
		t.Fatalf("NewDLQManager() error = %v", err)
	}

	if err := manager.Replay(ctx, "dlq-evt-9"); err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if want := broker.Route(testTopics.Rated, "9"); broker.pub.topic != want {
		t.Errorf("replay topic = %q, want %q", broker.pub.topic, want)
	}
	msg := broker.pub.messages[0]
	if msg.UUID == "dlq-evt-9" || msg.Metadata.Get(natsgo.MsgIdHdr) != msg.UUID {
		t.Errorf("replayed message must carry a fresh id, got %q / %q", msg.UUID, msg.Metadata.Get(natsgo.MsgIdHdr))
	}
	if msg.Metadata.Get(MetadataReplayOf) != "dlq-evt-9" {
		t.Errorf("replay_of = %q", msg.Metadata.Get(MetadataReplayOf))
	}
	if msg.Metadata.Get(MetadataEventID) != "evt-9" {
		t.Error("event id should be carried over")
	}
	for _, k := range []string{MetadataErrorCategory, middleware.ReasonForPoisonedKey} {
		if msg.Metadata.Get(k) != "" {
			t.Errorf("metadata %q should be dropped on replay", k)
		}
	}

	broker.pub.err = errors.New("broker down")
	if err := manager.Replay(ctx, "dlq-evt-9"); err == nil {
		t.Error("Replay() should fail when publish fails")
	}
	got, _ := store.Get(ctx, "dlq-evt-9")
	if got.ReplayCount != 1 {
		t.Errorf("ReplayCount = %d, want 1", got.ReplayCount)
	}
}

// recordingBroker routes like the memory broker but records publishes.
type recordingBroker struct {
	*MemoryBroker
	pub *recordingPublisher
}

func (b *recordingBroker) Publisher() message.Publisher {
	return b.pub
}
