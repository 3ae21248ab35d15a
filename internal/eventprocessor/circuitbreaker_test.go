// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mediatrack/notifier/internal/metrics"
)

var errBrokerDown = errors.New("nats: no servers available for connection")

func publishOK() (interface{}, error)   { return "acked", nil }
func publishFail() (interface{}, error) { return nil, errBrokerDown }

func TestNewCircuitBreaker_StartsClosed(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("cb-start"))
	if cb.Name() != "cb-start" {
		t.Errorf("Name() = %q, want %q", cb.Name(), "cb-start")
	}
	if got := CircuitBreakerState(cb); got != "closed" {
		t.Errorf("CircuitBreakerState() = %q, want closed", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("cb-start")); got != 0 {
		t.Errorf("state gauge = %v, want 0", got)
	}
}

func TestExecuteWithBreaker_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func() (interface{}, error)
		wantErr error
		result  string
	}{
		{"broker acks", publishOK, nil, "success"},
		{"broker refuses", publishFail, errBrokerDown, "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name := "cb-outcome-" + tt.result
			cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(name))

			before := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(name, tt.result))
			_, err := ExecuteWithBreaker(cb, tt.fn)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ExecuteWithBreaker() error = %v, want %v", err, tt.wantErr)
			}
			after := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(name, tt.result))
			if after-before != 1 {
				t.Errorf("%s requests = %v, want 1", tt.result, after-before)
			}
		})
	}
}

func TestExecuteWithBreaker_OpensAndRejects(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "cb-open",
		MaxRequests:      1,
		Interval:         time.Second,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	})

	for i := 0; i < 2; i++ {
		_, _ = ExecuteWithBreaker(cb, publishFail)
	}

	called := false
	_, err := ExecuteWithBreaker(cb, func() (interface{}, error) {
		called = true
		return publishOK()
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want ErrOpenState", err)
	}
	if called {
		t.Error("an open breaker must not reach the broker")
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("cb-open", "rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("cb-open")); got != float64(gobreaker.StateOpen) {
		t.Errorf("state gauge = %v, want %v", got, float64(gobreaker.StateOpen))
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerTransitions.WithLabelValues("cb-open", "closed", "open")); got != 1 {
		t.Errorf("closed->open transitions = %v, want 1", got)
	}
}

func TestExecuteWithBreaker_HalfOpenProbeCloses(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "cb-recover",
		MaxRequests:      1,
		Interval:         50 * time.Millisecond,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 1,
	})

	_, _ = ExecuteWithBreaker(cb, publishFail)
	if got := CircuitBreakerState(cb); got != "open" {
		t.Fatalf("state after failure = %q, want open", got)
	}

	time.Sleep(100 * time.Millisecond)

	result, err := ExecuteWithBreaker(cb, publishOK)
	if err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if result != "acked" {
		t.Errorf("probe result = %v, want acked", result)
	}
	if got := CircuitBreakerState(cb); got != "closed" {
		t.Errorf("state after probe = %q, want closed", got)
	}
}
