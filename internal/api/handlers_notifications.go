// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mediatrack/notifier/internal/database"
	"github.com/mediatrack/notifier/internal/models"
)

type findFunc func(ctx context.Context, userID int64, limit int) ([]models.Notification, error)

// RecentNotifications lists the newest notifications of a user.
func (h *Handler) RecentNotifications(w http.ResponseWriter, r *http.Request) {
	h.listNotifications(w, r, h.notifications.FindRecent)
}

// UnreadNotifications lists the newest unread notifications of a user.
func (h *Handler) UnreadNotifications(w http.ResponseWriter, r *http.Request) {
	h.listNotifications(w, r, h.notifications.FindUnread)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request, find findFunc) {
	start := time.Now()

	userID, limit, ok := h.userAndLimit(w, r)
	if !ok {
		return
	}

	list, err := find(r.Context(), userID, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to load notifications", err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}

	respondSuccess(w, http.StatusOK, models.NotificationPage{
		Notifications: list,
		Pagination: models.PaginationInfo{
			Limit:   limit,
			HasMore: len(list) == limit,
		},
	}, start)
}

// UnreadCount returns the unread count, capped at the effective limit.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, limit, ok := h.userAndLimit(w, r)
	if !ok {
		return
	}

	n, err := h.notifications.CountUnread(r.Context(), userID, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to count notifications", err)
		return
	}
	respondSuccess(w, http.StatusOK, models.UnreadCount{UserID: userID, Count: n, Limit: limit}, start)
}

// MarkNotificationRead marks one of the user's notifications read. Marking
// an already read notification succeeds.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	id, err := pathID(r, "notificationID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, database.ErrNotificationNotFound) {
			respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "Notification not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every notification of the user read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	changed, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to mark notifications read", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]int64{"updated": changed}, start)
}

// userAndLimit parses the user id and the limit query, clamped to the
// configured fetch limit.
func (h *Handler) userAndLimit(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return 0, 0, false
	}
	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return 0, 0, false
	}
	return userID, h.notifications.ClampLimit(limit), true
}
