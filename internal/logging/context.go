// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	loggerKey        contextKey = "logger"
)

// GenerateCorrelationID returns a short id suitable for following one
// rating through publish, fanout and dead-letter logs.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a full UUID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithCorrelationID stores id in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID stores a freshly generated correlation id in ctx.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns "" when ctx carries no correlation id.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID stores an HTTP request id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when ctx carries no request id.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithLogger stores a preconfigured logger in ctx.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext falls back to the global logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger carrying the correlation and request ids found in ctx.
//
//	logging.Ctx(ctx).Info().Msg("notification created")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith is Ctx for callers that want to add more fields first.
func CtxWith(ctx context.Context) zerolog.Context {
	logger := LoggerFromContext(ctx)
	lc := logger.With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	return lc
}
