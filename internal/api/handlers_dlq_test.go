// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"net/http"
	"testing"

	"github.com/mediatrack/notifier/internal/eventprocessor"
)

func TestDLQEntries(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/dlq", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got DLQEntriesResponse
	decodeData(t, rec, &got)
	if got.Count != 2 || len(got.Entries) != 2 {
		t.Errorf("entries = %d (count %d), want 2", len(got.Entries), got.Count)
	}
	if got.Limit != defaultDLQLimit {
		t.Errorf("limit = %d, want %d", got.Limit, defaultDLQLimit)
	}
}

func TestDLQEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"get", http.MethodGet, "/api/v1/dlq/msg-1", http.StatusOK},
		{"get missing", http.MethodGet, "/api/v1/dlq/nope", http.StatusNotFound},
		{"replay", http.MethodPost, "/api/v1/dlq/msg-1/replay", http.StatusAccepted},
		{"replay missing", http.MethodPost, "/api/v1/dlq/nope/replay", http.StatusNotFound},
		{"delete", http.MethodDelete, "/api/v1/dlq/msg-2", http.StatusNoContent},
		{"delete missing", http.MethodDelete, "/api/v1/dlq/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)

			rec := env.do(t, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestReplayDLQEntry_KeepsEntry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/dlq/msg-1/replay", "")
	if len(env.dlq.replayed) != 1 || env.dlq.replayed[0] != "msg-1" {
		t.Fatalf("replayed = %v, want [msg-1]", env.dlq.replayed)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/dlq/msg-1", "")
	var entry eventprocessor.DLQEntry
	decodeData(t, rec, &entry)
	if entry.ID != "msg-1" {
		t.Errorf("id = %q, want msg-1", entry.ID)
	}
}

func TestDLQ_NotConfigured(t *testing.T) {
	t.Parallel()

	h, err := NewHandler(HandlerDeps{
		Ratings:       &fakeRatings{},
		Follows:       newFakeFollows(),
		Notifications: &fakeNotifications{fetchLimit: 10},
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	env := &testEnv{router: NewRouter(h, nil)}

	rec := env.do(t, http.MethodGet, "/api/v1/dlq", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
