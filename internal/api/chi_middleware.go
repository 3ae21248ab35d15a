// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/middleware"
	"github.com/mediatrack/notifier/internal/models"
)

// ChiMiddlewareConfig configures CORS and rate limiting.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultChiMiddlewareConfig allows no cross-origin callers until origins
// are configured.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader, middleware.CorrelationIDHeader},
		CORSExposedHeaders: []string{middleware.RequestIDHeader, middleware.CorrelationIDHeader},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddlewareConfigFrom maps SECURITY_* settings.
func ChiMiddlewareConfigFrom(cfg *config.SecurityConfig) *ChiMiddlewareConfig {
	out := DefaultChiMiddlewareConfig()
	out.CORSAllowedOrigins = cfg.CORSOrigins
	if cfg.RateLimitReqs > 0 {
		out.RateLimitRequests = cfg.RateLimitReqs
	}
	if cfg.RateLimitWindow > 0 {
		out.RateLimitWindow = cfg.RateLimitWindow
	}
	out.RateLimitDisabled = cfg.RateLimitDisabled
	return out
}

// ChiMiddleware builds the go-chi/cors and go-chi/httprate handlers once.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware uses the defaults when config is nil.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	return &ChiMiddleware{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: config.CORSAllowedMethods,
			AllowedHeaders: config.CORSAllowedHeaders,
			ExposedHeaders: config.CORSExposedHeaders,
			MaxAge:         config.CORSMaxAge,
		}),
	}
}

// CORS must be global so preflight requests reach it.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit limits per client IP. Limited requests get the error envelope.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, models.ErrCodeRateLimit, "Rate limit exceeded", nil)
		}),
	)
}
