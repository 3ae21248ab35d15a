// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()
	r := &RetryLoop{config: Config{RetryBackoff: time.Second}}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, maxBackoff},
		{50, maxBackoff},
		{1000, maxBackoff},
	}
	for _, tt := range tests {
		if got := r.calculateBackoff(tt.attempts); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestIsReadyForRetry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &RetryLoop{
		config: Config{RetryBackoff: time.Second},
		now:    func() time.Time { return now },
	}

	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"never attempted", &Entry{}, true},
		{"backoff elapsed", &Entry{Attempts: 1, LastAttemptAt: now.Add(-2 * time.Second)}, true},
		{"backoff pending", &Entry{Attempts: 1, LastAttemptAt: now.Add(-time.Second)}, false},
		{"long backoff pending", &Entry{Attempts: 4, LastAttemptAt: now.Add(-10 * time.Second)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.isReadyForRetry(tt.entry); got != tt.want {
				t.Errorf("isReadyForRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryLoop_RetryPending_Publishes(t *testing.T) {
	t.Parallel()
	w := openTestWAL(t)
	ctx := context.Background()

	if _, err := w.Write(ctx, "evt", createTestEvent("evt")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var calls atomic.Int32
	loop := NewRetryLoop(w, PublisherFunc(func(context.Context, *Entry) error {
		calls.Add(1)
		return nil
	}))
	loop.RetryPending(ctx)

	if calls.Load() != 1 {
		t.Errorf("publish calls = %d, want 1", calls.Load())
	}
	if stats := w.Stats(); stats.PendingCount != 0 || stats.ConfirmedCount != 1 {
		t.Errorf("Stats() = %+v, want the entry confirmed", stats)
	}
}

func TestRetryLoop_RetryPending_FailureRecordsAttempt(t *testing.T) {
	t.Parallel()
	w := openTestWAL(t)
	ctx := context.Background()

	if _, err := w.Write(ctx, "evt", createTestEvent("evt")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	loop := NewRetryLoop(w, PublisherFunc(func(context.Context, *Entry) error {
		return errors.New("broker down")
	}))
	loop.RetryPending(ctx)
	// The second pass falls inside the backoff window and is skipped.
	loop.RetryPending(ctx)

	pending, _ := w.GetPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("GetPending() returned %d entries, want 1", len(pending))
	}
	if pending[0].Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", pending[0].Attempts)
	}
	if pending[0].LastError != "broker down" {
		t.Errorf("LastError = %q, want %q", pending[0].LastError, "broker down")
	}
}

func TestRetryLoop_RetryPending_DropsExhaustedAndExpired(t *testing.T) {
	t.Parallel()
	w := openTestWAL(t)
	ctx := context.Background()

	putPendingEntry(t, w, &Entry{
		ID:        "exhausted",
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now(),
		Attempts:  3,
	})
	putPendingEntry(t, w, &Entry{
		ID:        "expired",
		Payload:   json.RawMessage(`{}`),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})

	loop := NewRetryLoop(w, PublisherFunc(func(_ context.Context, e *Entry) error {
		t.Errorf("entry %s should not be published", e.ID)
		return nil
	}))
	loop.RetryPending(ctx)

	if stats := w.Stats(); stats.PendingCount != 0 || stats.ConfirmedCount != 0 {
		t.Errorf("Stats() = %+v, want both entries removed", stats)
	}
}

func TestRetryLoop_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()
	w := openTestWAL(t)
	loop := NewRetryLoop(w, PublisherFunc(func(context.Context, *Entry) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestPublisherFunc(t *testing.T) {
	t.Parallel()
	want := errors.New("boom")
	var got *Entry
	f := PublisherFunc(func(_ context.Context, e *Entry) error {
		got = e
		return want
	})

	entry := &Entry{ID: "x"}
	if err := f.PublishEntry(context.Background(), entry); !errors.Is(err, want) {
		t.Errorf("PublishEntry() error = %v, want %v", err, want)
	}
	if got != entry {
		t.Error("PublishEntry() did not pass the entry through")
	}
}
