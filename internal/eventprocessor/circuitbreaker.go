// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/metrics"
)

// NewCircuitBreaker creates a circuit breaker with the given configuration.
// State changes are logged and exported as metrics.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(float64(counts.ConsecutiveFailures))
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

// CircuitBreakerState converts gobreaker.State to a string for monitoring.
func CircuitBreakerState(cb *gobreaker.CircuitBreaker[interface{}]) string {
	return cb.State().String()
}

// ExecuteWithBreaker runs fn through cb and records the outcome.
func ExecuteWithBreaker(cb *gobreaker.CircuitBreaker[interface{}], fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(cb.Name(), "failure").Inc()
	}
	return result, err
}
