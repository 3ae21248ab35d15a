// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestContextIDs_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		correlationID string
		requestID     string
	}{
		{"both", "ab12cd34", "7d0b6e1c-9f3a-4a43-8c1e-0b6f2d7b1e55"},
		{"correlation only", "ab12cd34", ""},
		{"request only", "", "req-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			if tt.correlationID != "" {
				ctx = ContextWithCorrelationID(ctx, tt.correlationID)
			}
			if tt.requestID != "" {
				ctx = ContextWithRequestID(ctx, tt.requestID)
			}
			if got := CorrelationIDFromContext(ctx); got != tt.correlationID {
				t.Errorf("CorrelationIDFromContext() = %q, want %q", got, tt.correlationID)
			}
			if got := RequestIDFromContext(ctx); got != tt.requestID {
				t.Errorf("RequestIDFromContext() = %q, want %q", got, tt.requestID)
			}
		})
	}
}

func TestGenerateCorrelationID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateCorrelationID()
		if len(id) != 8 {
			t.Fatalf("GenerateCorrelationID() = %q, want 8 chars", id)
		}
		if seen[id] {
			t.Fatalf("GenerateCorrelationID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestCtxWith_ExtraFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithCorrelationID(ctx, "fan0ut01")

	l := CtxWith(ctx).Int64("user_id", 7).Logger()
	l.Info().Msg("notification created")

	out := buf.String()
	for _, want := range []string{`"correlation_id":"fan0ut01"`, `"user_id":7`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "request_id") {
		t.Errorf("request_id should be absent without one in ctx: %s", out)
	}
}

func TestCtx_UsesLoggerFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf).With().Str("component", "fanout").Logger())
	ctx = ContextWithRequestID(ctx, "req-1")

	Ctx(ctx).Warn().Msg("follower lookup slow")

	out := buf.String()
	for _, want := range []string{`"component":"fanout"`, `"request_id":"req-1"`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}
