// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/models"
)

var testTopics = Topics{
	Rated:      "ratings.rated",
	Recompute:  "ratings.recompute",
	DeadLetter: "ratings.dlq",
}

func testPipelineRouterConfig() *RouterConfig {
	return &RouterConfig{
		CloseTimeout:         5 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		RetryMultiplier:      2,
	}
}

type pipelineFixture struct {
	broker    *MemoryBroker
	pipeline  *Pipeline
	publisher *EventPublisher
	followers *fakeFollowers
	notifier  *fakeNotifier
	dlq       *memDLQStore
	stats     *fakeStats
}

// startPipeline runs a pipeline on the in-memory broker. Publishing blocks
// until the whole handler chain, dead-lettering included, has acked.
func startPipeline(t *testing.T, partitions int) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		broker:    NewMemoryBroker(partitions, watermill.NopLogger{}),
		followers: newFakeFollowers(),
		notifier:  newFakeNotifier(),
		dlq:       newMemDLQStore(),
		stats:     &fakeStats{},
	}

	var err error
	f.pipeline, err = NewPipeline(f.broker, testTopics, testPipelineRouterConfig(), PipelineDeps{
		Followers: f.followers,
		Notifier:  f.notifier,
		Stats:     f.stats,
		DLQStore:  f.dlq,
	}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	f.publisher, err = NewEventPublisher(f.broker, testTopics, CircuitBreakerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.pipeline.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = f.pipeline.Close()
		cancel()
		_ = f.broker.Close()
	})
	return f
}

func (f *pipelineFixture) publish(t *testing.T, event *models.RatingEvent) {
	t.Helper()
	if err := f.publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	t.Parallel()
	broker := NewMemoryBroker(2, nil)
	defer broker.Close()
	deps := PipelineDeps{Followers: newFakeFollowers(), Notifier: newFakeNotifier()}

	if _, err := NewPipeline(nil, testTopics, nil, deps, nil); err == nil {
		t.Error("NewPipeline(nil broker) should fail")
	}
	if _, err := NewPipeline(broker, Topics{Rated: "r"}, nil, deps, nil); err == nil {
		t.Error("NewPipeline() without dead-letter topic should fail")
	}
	if _, err := NewPipeline(broker, testTopics, nil, PipelineDeps{}, nil); err == nil {
		t.Error("NewPipeline() without stores should fail")
	}
}

func TestPipeline_LaneHandlers(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 4)

	health := f.pipeline.HealthCheck(context.Background())
	if !health.Healthy {
		t.Fatalf("HealthCheck() = %+v, want healthy", health)
	}
	if health.Details["fanout_lanes"] != 4 || health.Details["aggregate_lanes"] != 4 {
		t.Errorf("lanes = %v/%v, want 4/4", health.Details["fanout_lanes"], health.Details["aggregate_lanes"])
	}
	// 4 fanout + 4 aggregate + 1 dead-letter
	if got := health.Details["handlers"]; got != 9 {
		t.Errorf("handlers = %v, want 9", got)
	}
	if err := f.pipeline.Run(context.Background()); err == nil {
		t.Error("second Run() should fail")
	}
}

func TestPipeline_FanoutEndToEnd(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 4)
	f.followers.follow(followerB, raterA, 9)
	f.followers.follow(followerC, raterA, 9)

	f.publish(t, models.NewRatedEvent(raterA, "alice", 100, "Inception", 10, time.Now()))
	f.publish(t, models.NewRatedEvent(raterA, "alice", 101, "Tenet", 8, time.Now()))

	got := f.notifier.notifications()
	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	for _, n := range got {
		if n.MediaItemID != 100 || n.Message != "alice rated 'Inception' with 10 stars" {
			t.Errorf("unexpected notification %+v", n)
		}
	}
	if f.pipeline.DeadLetters().Received() != 0 {
		t.Errorf("dead letters = %d, want 0", f.pipeline.DeadLetters().Received())
	}
}

func TestPipeline_TransientFailuresRetried(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 2)
	f.followers.follow(followerB, raterA, 7)
	f.notifier.failures = 2

	f.publish(t, models.NewRatedEvent(raterA, "alice", 100, "Inception", 9, time.Now()))

	if got := f.notifier.callCount(); got != 3 {
		t.Errorf("consume invocations = %d, want 3", got)
	}
	if got := len(f.notifier.notifications()); got != 1 {
		t.Errorf("notifications = %d, want 1", got)
	}
	if got := f.pipeline.DeadLetters().Received(); got != 0 {
		t.Errorf("dead letters = %d, want 0", got)
	}
}

func TestPipeline_ExhaustedRetriesDeadLetteredOnce(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 2)
	f.followers.follow(followerB, raterA, 7)
	f.notifier.always = true

	event := models.NewRatedEvent(raterA, "alice", 100, "Inception", 9, time.Now())
	f.publish(t, event)

	if got := f.notifier.callCount(); got != 4 {
		t.Errorf("consume invocations = %d, want 4", got)
	}
	if got := len(f.notifier.notifications()); got != 0 {
		t.Errorf("notifications = %d, want 0", got)
	}
	if got := f.pipeline.DeadLetters().Received(); got != 1 {
		t.Errorf("dead-letter handler invocations = %d, want 1", got)
	}

	entries := f.dlq.all()
	if len(entries) != 1 {
		t.Fatalf("dead-letter entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.EventID != event.EventID {
		t.Errorf("EventID = %q, want %q", entry.EventID, event.EventID)
	}
	if entry.ID != deadLetterIDPrefix+event.EventID {
		t.Errorf("ID = %q, want %q", entry.ID, deadLetterIDPrefix+event.EventID)
	}
	if entry.CategoryName != "connection" {
		t.Errorf("CategoryName = %q, want connection", entry.CategoryName)
	}
	wantTopic := f.broker.Route(testTopics.Rated, event.PartitionKey())
	if entry.Topic != wantTopic {
		t.Errorf("Topic = %q, want %q", entry.Topic, wantTopic)
	}
	if entry.Reason == "" || entry.Handler == "" {
		t.Errorf("entry missing reason or handler: %+v", entry)
	}
}

func TestPipeline_PoisonMessageSkipsRetries(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 2)
	f.followers.follow(followerB, raterA, 0)

	msg := message.NewMessage(watermill.NewUUID(), []byte("not-json"))
	msg.Metadata.Set(MetadataPartitionKey, "1")
	if err := f.broker.Publisher().Publish(f.broker.Route(testTopics.Rated, "1"), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := f.notifier.callCount(); got != 0 {
		t.Errorf("notifier calls = %d, want 0", got)
	}
	entries := f.dlq.all()
	if len(entries) != 1 {
		t.Fatalf("dead-letter entries = %d, want 1", len(entries))
	}
	if entries[0].CategoryName != "validation" {
		t.Errorf("CategoryName = %q, want validation", entries[0].CategoryName)
	}
	if entries[0].Payload != "not-json" {
		t.Errorf("Payload = %q, want not-json", entries[0].Payload)
	}
}

func TestPipeline_SameRaterOrdering(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 4)

	const raters = 3
	const perRater = 20
	for r := int64(1); r <= raters; r++ {
		f.followers.follow(1000, r, 0)
	}

	var wg sync.WaitGroup
	for r := int64(1); r <= raters; r++ {
		wg.Add(1)
		go func(rater int64) {
			defer wg.Done()
			for i := 0; i < perRater; i++ {
				event := models.NewRatedEvent(rater, fmt.Sprintf("user%d", rater), rater*1000+int64(i), "Item", i%11, time.Now())
				if err := f.publisher.Publish(context.Background(), event); err != nil {
					t.Errorf("Publish() error = %v", err)
					return
				}
			}
		}(r)
	}
	wg.Wait()

	got := f.notifier.notifications()
	if len(got) != raters*perRater {
		t.Fatalf("notifications = %d, want %d", len(got), raters*perRater)
	}
	last := make(map[int64]int64)
	for _, n := range got {
		if prev, ok := last[n.RatedByUserID]; ok && n.MediaItemID <= prev {
			t.Errorf("rater %d: media item %d fanned out after %d", n.RatedByUserID, n.MediaItemID, prev)
		}
		last[n.RatedByUserID] = n.MediaItemID
	}
}

func TestPipeline_RecomputeEvents(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 2)
	f.followers.follow(followerB, raterA, 0)

	f.publish(t, models.NewRecomputeEvent(raterA, "alice", 555, "Heat", time.Now()))

	if got := f.stats.recomputed(); len(got) != 1 || got[0] != 555 {
		t.Errorf("recomputed = %v, want [555]", got)
	}
	if got := f.notifier.callCount(); got != 0 {
		t.Errorf("notifier calls = %d, want 0 for recompute event", got)
	}
}

func TestPipeline_ReplayDeadLetter(t *testing.T) {
	t.Parallel()
	f := startPipeline(t, 2)
	f.followers.follow(followerB, raterA, 7)
	f.notifier.always = true

	f.publish(t, models.NewRatedEvent(raterA, "alice", 100, "Inception", 9, time.Now()))
	entries := f.dlq.all()
	if len(entries) != 1 {
		t.Fatalf("dead-letter entries = %d, want 1", len(entries))
	}

	manager, err := NewDLQManager(f.dlq, f.broker, testTopics, &config.DLQConfig{RetentionPeriod: time.Hour})
	if err != nil {
		t.Fatalf("NewDLQManager() error = %v", err)
	}

	f.notifier.mu.Lock()
	f.notifier.always = false
	f.notifier.mu.Unlock()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := manager.Replay(ctx, entries[0].ID); err != nil {
			t.Fatalf("Replay() error = %v", err)
		}
	}

	if got := len(f.notifier.notifications()); got != 1 {
		t.Errorf("notifications after two replays = %d, want 1", got)
	}
	replayed, err := manager.Get(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if replayed.ReplayCount != 2 || replayed.LastReplayedAt == nil {
		t.Errorf("replayed entry = %+v, want 2 replays", replayed)
	}
}
