// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/mediatrack/notifier/internal/logging"
)

// Propagation headers.
const (
	RequestIDHeader     = "X-Request-ID"
	CorrelationIDHeader = "X-Correlation-ID"
)

// validID limits caller-supplied ids to something safe to log and echo.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID assigns every request a request id and a correlation id. Ids
// supplied by an upstream proxy are reused when well formed. The
// correlation id travels with the rating into the broker metadata, so one
// id links the HTTP request to the fanout and dead-letter logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validID.MatchString(requestID) {
			requestID = uuid.New().String()
		}
		correlationID := r.Header.Get(CorrelationIDHeader)
		if !validID.MatchString(correlationID) {
			correlationID = logging.GenerateCorrelationID()
		}

		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set(CorrelationIDHeader, correlationID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}
