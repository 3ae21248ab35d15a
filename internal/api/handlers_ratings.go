// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/ratings"
	"github.com/mediatrack/notifier/internal/validation"
)

// rateBody is the PUT rating body. A null or missing rating clears it.
type rateBody struct {
	Username      string `json:"username"`
	MediaItemName string `json:"mediaItemName"`
	Rating        *int   `json:"rating"`
}

// RateMediaItem sets or clears one user's rating of one media item. The
// response only reflects the commit; notification fanout happens later.
func (h *Handler) RateMediaItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}
	mediaItemID, err := pathID(r, "mediaItemID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	var body rateBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid request body", err)
		return
	}

	rating, err := h.ratings.Rate(r.Context(), ratings.RateRequest{
		UserID:        userID,
		MediaItemID:   mediaItemID,
		Username:      body.Username,
		MediaItemName: body.MediaItemName,
		Rating:        body.Rating,
	})
	if err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			respondValidation(w, verr)
			return
		}
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to store rating", err)
		return
	}

	respondSuccess(w, http.StatusOK, rating, start)
}
