// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/models"
)

func startNATSBroker(t *testing.T, partitions int) *NATSBroker {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping embedded NATS test in short mode")
	}

	brokerCfg := testBrokerConfig()
	brokerCfg.Transport = config.TransportNATS
	brokerCfg.Partitions = partitions
	brokerCfg.Replicas = 1

	natsCfg := &config.NATSConfig{
		EmbeddedServer:  true,
		EmbeddedPort:    -1,
		StoreDir:        t.TempDir(),
		MaxMemory:       64 << 20,
		MaxStore:        256 << 20,
		StreamName:      "RATINGS_TEST",
		StreamMaxAge:    time.Hour,
		DuplicateWindow: time.Minute,
		DurablePrefix:   "test",
		AckWait:         5 * time.Second,
		MaxDeliver:      10,
		MaxReconnects:   -1,
		ReconnectWait:   100 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	broker, err := NewNATSBroker(ctx, brokerCfg, natsCfg, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewNATSBroker() error = %v", err)
	}
	t.Cleanup(func() { _ = broker.Close() })
	return broker
}

func TestNATSBroker_DuplicateEventDropped(t *testing.T) {
	t.Parallel()
	broker := startNATSBroker(t, 2)

	publisher, err := NewEventPublisher(broker, testTopics, CircuitBreakerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}

	ctx := context.Background()
	event := models.NewRatedEvent(raterA, "alice", 100, "Inception", 9, time.Now())
	for i := 0; i < 2; i++ {
		if err := publisher.Publish(ctx, event); err != nil {
			t.Fatalf("Publish() attempt %d error = %v", i+1, err)
		}
	}

	health := broker.HealthCheck(ctx)
	if !health.Healthy {
		t.Fatalf("HealthCheck() = %+v, want healthy", health)
	}
	if got := health.Details["messages"]; got != uint64(1) {
		t.Errorf("stream messages = %v, want 1", got)
	}
}

func TestNATSBroker_PipelineDeliversNotification(t *testing.T) {
	t.Parallel()
	broker := startNATSBroker(t, 2)

	followers := newFakeFollowers()
	followers.follow(followerB, raterA, 7)
	notifier := newFakeNotifier()
	notifier.failures = 1

	pipeline, err := NewPipeline(broker, testTopics, testPipelineRouterConfig(), PipelineDeps{
		Followers: followers,
		Notifier:  notifier,
	}, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := pipeline.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer pipeline.Close()

	publisher, err := NewEventPublisher(broker, testTopics, CircuitBreakerConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEventPublisher() error = %v", err)
	}
	if err := publisher.Publish(ctx, models.NewRatedEvent(raterA, "alice", 100, "Inception", 9, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for len(notifier.notifications()) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	got := notifier.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].RecipientID != followerB {
		t.Errorf("RecipientID = %d, want %d", got[0].RecipientID, followerB)
	}
	if calls := notifier.callCount(); calls != 2 {
		t.Errorf("consume invocations = %d, want 2", calls)
	}
}

func TestDurableName(t *testing.T) {
	t.Parallel()
	if got := DurableName("fanout", "ratings.rated.p3"); got != "fanout_ratings_rated_p3" {
		t.Errorf("DurableName() = %q, want %q", got, "fanout_ratings_rated_p3")
	}
}
