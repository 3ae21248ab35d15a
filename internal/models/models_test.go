// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func TestEventKind_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind EventKind
		want bool
	}{
		{EventKindRated, true},
		{EventKindAggregateRecompute, true},
		{"", false},
		{"rating.deleted", false},
	}
	for _, tt := range tests {
		if got := tt.kind.Valid(); got != tt.want {
			t.Errorf("EventKind(%q).Valid() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestNewRatedEvent(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := NewRatedEvent(42, "alice", 7, "Dune", 9, at)

	if _, err := uuid.Parse(ev.EventID); err != nil {
		t.Errorf("EventID %q is not a UUID: %v", ev.EventID, err)
	}
	if ev.Kind != EventKindRated {
		t.Errorf("Kind = %q, want %q", ev.Kind, EventKindRated)
	}
	if ev.Rating == nil || *ev.Rating != 9 {
		t.Errorf("Rating = %v, want 9", ev.Rating)
	}
	if ev.Timestamp.Location() != time.UTC || !ev.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v in UTC", ev.Timestamp, at)
	}
	if got := ev.PartitionKey(); got != "42" {
		t.Errorf("PartitionKey() = %q, want %q", got, "42")
	}
	if !ev.ShouldFanOut() {
		t.Error("rated event with a value should fan out")
	}
}

func TestNewRecomputeEvent(t *testing.T) {
	t.Parallel()

	ev := NewRecomputeEvent(42, "alice", 7, "Dune", time.Now())
	if ev.Kind != EventKindAggregateRecompute {
		t.Errorf("Kind = %q, want %q", ev.Kind, EventKindAggregateRecompute)
	}
	if ev.Rating != nil {
		t.Errorf("Rating = %v, want nil", *ev.Rating)
	}
	if ev.ShouldFanOut() {
		t.Error("recompute event should not fan out")
	}
}

func TestRatingEvent_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		event    RatingEvent
		wantKind EventKind
	}{
		{"legacy with rating", RatingEvent{Rating: intPtr(8)}, EventKindRated},
		{"legacy null rating", RatingEvent{}, EventKindAggregateRecompute},
		{"explicit kind kept", RatingEvent{Kind: EventKindAggregateRecompute, Rating: intPtr(8)}, EventKindAggregateRecompute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := tt.event
			ev.Normalize()
			if ev.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", ev.Kind, tt.wantKind)
			}
			if ev.EventID == "" {
				t.Error("EventID not assigned")
			}
		})
	}

	ev := RatingEvent{EventID: "keep-me"}
	ev.Normalize()
	if ev.EventID != "keep-me" {
		t.Errorf("EventID = %q, want existing id kept", ev.EventID)
	}
}

func TestRatingEvent_NullRatingWireFormat(t *testing.T) {
	t.Parallel()

	var ev RatingEvent
	if err := json.Unmarshal([]byte(`{"userId":1,"username":"a","mediaItemId":2,"mediaItemName":"b","rating":null,"timestamp":"2026-01-01T00:00:00Z"}`), &ev); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ev.Rating != nil {
		t.Errorf("Rating = %d, want nil", *ev.Rating)
	}
	ev.Normalize()
	if ev.ShouldFanOut() {
		t.Error("null rating should not fan out")
	}
}

func TestFollower_Wants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		threshold int
		rating    int
		want      bool
	}{
		{DefaultRatingThreshold, 7, true},
		{DefaultRatingThreshold, 6, false},
		{DefaultRatingThreshold, 10, true},
		{0, 0, true},
		{10, 9, false},
		{10, 10, true},
	}
	for _, tt := range tests {
		f := Follower{FollowerID: 2, MinimumRatingThreshold: tt.threshold}
		if got := f.Wants(tt.rating); got != tt.want {
			t.Errorf("threshold %d: Wants(%d) = %v, want %v", tt.threshold, tt.rating, got, tt.want)
		}
	}
}

func TestRatingMessage(t *testing.T) {
	t.Parallel()

	got := RatingMessage("alice", "The Matrix", 9)
	want := "alice rated 'The Matrix' with 9 stars"
	if got != want {
		t.Errorf("RatingMessage() = %q, want %q", got, want)
	}
}
