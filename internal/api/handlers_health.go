// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"net/http"
	"time"

	"github.com/mediatrack/notifier/internal/eventprocessor"
	"github.com/mediatrack/notifier/internal/models"
)

// Health reports every component. A failing critical component answers
// 503; a degraded one still answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.health == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Health checks are not configured", nil)
		return
	}

	overall := h.health.CheckAll(r.Context())
	status := http.StatusOK
	if !overall.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondSuccess(w, status, overall, start)
}

// HealthLive answers 200 while the process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady answers 200 only when every critical component is healthy,
// so a load balancer stops routing rating writes to an instance whose
// database or broker is gone.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.health == nil {
		respondSuccess(w, http.StatusOK, map[string]interface{}{"ready": true}, start)
		return
	}

	overall := h.health.CheckAll(r.Context())
	if !overall.Healthy {
		failing := make([]string, 0, len(overall.Components))
		for name, c := range overall.Components {
			if !c.Healthy {
				failing = append(failing, name)
			}
		}
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   "error",
			Data:     map[string]interface{}{"ready": false, "status": overall.Status},
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    models.ErrCodeUnavailable,
				Message: "Service is not ready",
				Details: map[string]interface{}{"failing": failing},
			},
		})
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready":  true,
		"status": overall.Status,
	}, start)
}

var _ HealthReporter = (*eventprocessor.HealthChecker)(nil)
