// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediatrack/notifier/internal/middleware"
	"github.com/mediatrack/notifier/internal/models"
)

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, models.ErrCodeValidation, "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		// Probes are not rate limited.
		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		limit := mw.RateLimit()
		compress := chimiddleware.Compress(5, "application/json")

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(limit)

			// Compression would break the upgrade.
			r.Get("/notifications/ws", h.NotificationFeed)

			r.Group(func(r chi.Router) {
				r.Use(compress)

				r.Put("/ratings/{mediaItemID}", h.RateMediaItem)

				r.Get("/follows", h.ListFollowing)
				r.Post("/follows", h.Follow)
				r.Put("/follows/{followingID}", h.UpdateFollow)
				r.Delete("/follows/{followingID}", h.Unfollow)

				r.Get("/notifications", h.RecentNotifications)
				r.Get("/notifications/unread", h.UnreadNotifications)
				r.Get("/notifications/unread/count", h.UnreadCount)
				r.Put("/notifications/read", h.MarkAllNotificationsRead)
				r.Put("/notifications/{notificationID}/read", h.MarkNotificationRead)
			})
		})

		r.Route("/dlq", func(r chi.Router) {
			r.Use(limit)
			r.Use(compress)

			r.Get("/", h.DLQEntries)
			r.Get("/{id}", h.DLQEntry)
			r.Delete("/{id}", h.DeleteDLQEntry)
			r.Post("/{id}/replay", h.ReplayDLQEntry)
		})
	})

	return r
}
