// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mediatrack/notifier/internal/eventprocessor"
	"github.com/mediatrack/notifier/internal/models"
)

const (
	defaultDLQLimit = 100
	maxDLQLimit     = 1000
)

// DLQEntriesResponse is the body of GET /dlq.
type DLQEntriesResponse struct {
	Entries []*eventprocessor.DLQEntry `json:"entries"`
	Count   int                        `json:"count"`
	Limit   int                        `json:"limit"`
}

// DLQEntries lists dead letters, newest first.
func (h *Handler) DLQEntries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	limit, err := getIntParam(r, "limit", defaultDLQLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	if limit <= 0 || limit > maxDLQLimit {
		limit = defaultDLQLimit
	}

	entries, err := h.dlq.List(r.Context(), limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to list dead letters", err)
		return
	}
	if entries == nil {
		entries = []*eventprocessor.DLQEntry{}
	}
	respondSuccess(w, http.StatusOK, DLQEntriesResponse{Entries: entries, Count: len(entries), Limit: limit}, start)
}

// DLQEntry returns one dead letter.
func (h *Handler) DLQEntry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	entry, err := h.dlq.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDLQError(w, r, err, "Failed to load dead letter")
		return
	}
	respondSuccess(w, http.StatusOK, entry, start)
}

// DeleteDLQEntry discards a dead letter without replaying it.
func (h *Handler) DeleteDLQEntry(w http.ResponseWriter, r *http.Request) {
	if !h.dlqAvailable(w, r) {
		return
	}
	if err := h.dlq.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDLQError(w, r, err, "Failed to delete dead letter")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplayDLQEntry republishes a dead letter to its original topic. The entry
// is kept and its replay count incremented; the consumer's idempotency makes
// a repeated replay harmless.
func (h *Handler) ReplayDLQEntry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.dlq.Replay(r.Context(), id); err != nil {
		respondDLQError(w, r, err, "Failed to replay dead letter")
		return
	}
	respondSuccess(w, http.StatusAccepted, map[string]string{"id": id, "status": "replayed"}, start)
}

func (h *Handler) dlqAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.dlq == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeUnavailable, "Dead-letter store is not configured", nil)
		return false
	}
	return true
}

func respondDLQError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, eventprocessor.ErrDLQEntryNotFound) {
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "Dead-letter entry not found", nil)
		return
	}
	respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal, message, err)
}
