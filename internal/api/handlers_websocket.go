// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/models"
	ws "github.com/mediatrack/notifier/internal/websocket"
)

func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return ws.Upgrader(allowedOrigins)
}

// NotificationFeed upgrades to a websocket that receives the user's new
// notifications as they are created. It is a live tail only; clients read
// history through the list endpoints.
func (h *Handler) NotificationFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	if h.feed == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Live feed is not configured", nil)
		return
	}

	// After a failed upgrade the upgrader has already written the response.
	if err := h.feed.ServeUser(h.upgrader, w, r, userID); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Int64("user_id", userID).Msg("WebSocket upgrade failed")
	}
}

var _ LiveFeed = (*ws.Hub)(nil)
