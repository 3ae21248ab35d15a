// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mediatrack/notifier/internal/models"
)

func intPtr(v int) *int { return &v }

func TestSerializer_Marshal(t *testing.T) {
	t.Parallel()
	serializer := NewSerializer()

	t.Run("valid event", func(t *testing.T) {
		event := models.NewRatedEvent(1, "alice", 42, "Dune", 9, time.Now())

		data, err := serializer.Marshal(event)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["kind"] != string(models.EventKindRated) {
			t.Errorf("kind = %v, want %v", decoded["kind"], models.EventKindRated)
		}
		if decoded["mediaItemName"] != "Dune" {
			t.Errorf("mediaItemName = %v, want Dune", decoded["mediaItemName"])
		}
		if decoded["rating"] != float64(9) {
			t.Errorf("rating = %v, want 9", decoded["rating"])
		}
	})

	tests := []struct {
		name  string
		event *models.RatingEvent
	}{
		{"nil event", nil},
		{"missing fields", &models.RatingEvent{}},
		{"rating above range", &models.RatingEvent{
			UserID: 1, Username: "alice", MediaItemID: 2, MediaItemName: "Dune",
			Rating: intPtr(11), Timestamp: time.Now(),
		}},
		{"unknown kind", &models.RatingEvent{
			Kind: "rating.deleted", UserID: 1, Username: "alice", MediaItemID: 2, MediaItemName: "Dune",
			Rating: intPtr(5), Timestamp: time.Now(),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serializer.Marshal(tt.event)
			if !IsPermanentError(err) {
				t.Errorf("Marshal() error = %v, want permanent error", err)
			}
		})
	}
}

func TestSerializer_Unmarshal(t *testing.T) {
	t.Parallel()
	serializer := NewSerializer()

	tests := []struct {
		name       string
		data       string
		wantErr    bool
		wantKind   models.EventKind
		wantFanOut bool
	}{
		{
			name:       "rated",
			data:       `{"eventId":"6f1d6c5e-7a8b-4c3d-9e0f-1a2b3c4d5e6f","kind":"rating.rated","userId":1,"username":"alice","mediaItemId":2,"mediaItemName":"Dune","rating":8,"timestamp":"2026-01-02T03:04:05Z"}`,
			wantKind:   models.EventKindRated,
			wantFanOut: true,
		},
		{
			name:     "legacy record without kind or rating",
			data:     `{"userId":1,"username":"alice","mediaItemId":2,"mediaItemName":"Dune","rating":null,"timestamp":"2026-01-02T03:04:05Z"}`,
			wantKind: models.EventKindAggregateRecompute,
		},
		{
			name:       "legacy record with rating",
			data:       `{"userId":1,"username":"alice","mediaItemId":2,"mediaItemName":"Dune","rating":3,"timestamp":"2026-01-02T03:04:05Z"}`,
			wantKind:   models.EventKindRated,
			wantFanOut: true,
		},
		{name: "not json", data: `not-json`, wantErr: true},
		{name: "missing user", data: `{"username":"alice","mediaItemId":2,"mediaItemName":"Dune","rating":3,"timestamp":"2026-01-02T03:04:05Z"}`, wantErr: true},
		{name: "negative rating", data: `{"userId":1,"username":"alice","mediaItemId":2,"mediaItemName":"Dune","rating":-1,"timestamp":"2026-01-02T03:04:05Z"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := serializer.Unmarshal([]byte(tt.data))
			if tt.wantErr {
				if !IsPermanentError(err) {
					t.Errorf("Unmarshal() error = %v, want permanent error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if event.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", event.Kind, tt.wantKind)
			}
			if event.EventID == "" {
				t.Error("EventID should be filled")
			}
			if got := event.ShouldFanOut(); got != tt.wantFanOut {
				t.Errorf("ShouldFanOut() = %v, want %v", got, tt.wantFanOut)
			}
		})
	}
}

func TestSerializer_RoundTrip(t *testing.T) {
	t.Parallel()
	serializer := NewSerializer()
	original := models.NewRecomputeEvent(3, "carol", 9, "Arrival", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	data, err := serializer.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := serializer.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.EventID != original.EventID || got.Kind != original.Kind || got.Rating != nil {
		t.Errorf("round trip = %+v, want %+v", got, original)
	}
	if !got.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, original.Timestamp)
	}
}
