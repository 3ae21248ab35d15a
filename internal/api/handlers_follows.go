// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mediatrack/notifier/internal/database"
	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/validation"
)

// FollowRequest is the POST follows body.
type FollowRequest struct {
	FollowingID            int64 `json:"followingId" validate:"required,gt=0"`
	MinimumRatingThreshold *int  `json:"minimumRatingThreshold" validate:"omitempty,min=0,max=10"`
}

// ThresholdRequest is the PUT follow body.
type ThresholdRequest struct {
	MinimumRatingThreshold *int `json:"minimumRatingThreshold" validate:"required,min=0,max=10"`
}

// ListFollowing returns everyone userID follows.
func (h *Handler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	following, err := h.follows.ListFollowing(r.Context(), userID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to list follows", err)
		return
	}
	if following == nil {
		following = []models.FollowRelationship{}
	}
	respondSuccess(w, http.StatusOK, following, start)
}

// Follow creates a follow or replaces the threshold of an existing one.
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := pathID(r, "userID")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	var req FollowRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	threshold := h.defaultThreshold
	if req.MinimumRatingThreshold != nil {
		threshold = *req.MinimumRatingThreshold
	}

	follow, err := h.follows.Follow(r.Context(), userID, req.FollowingID, threshold)
	if err != nil {
		h.respondFollowError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, follow, start)
}

// UpdateFollow changes the threshold of an existing follow.
func (h *Handler) UpdateFollow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, followingID, ok := followPath(w, r)
	if !ok {
		return
	}

	var req ThresholdRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, "Invalid request body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	if err := h.follows.UpdateThreshold(r.Context(), userID, followingID, *req.MinimumRatingThreshold); err != nil {
		h.respondFollowError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, models.FollowRelationship{
		FollowerID:             userID,
		FollowingID:            followingID,
		MinimumRatingThreshold: *req.MinimumRatingThreshold,
	}, start)
}

// Unfollow removes a follow.
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, followingID, ok := followPath(w, r)
	if !ok {
		return
	}
	if err := h.follows.Unfollow(r.Context(), userID, followingID); err != nil {
		h.respondFollowError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func followPath(w http.ResponseWriter, r *http.Request) (userID, followingID int64, ok bool) {
	userID, err := pathID(r, "userID")
	if err == nil {
		followingID, err = pathID(r, "followingID")
	}
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return 0, 0, false
	}
	return userID, followingID, true
}

func (h *Handler) respondFollowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrFollowNotFound):
		respondError(w, r, http.StatusNotFound, models.ErrCodeNotFound, "Follow relationship not found", nil)
	case errors.Is(err, database.ErrSelfFollow), errors.Is(err, database.ErrInvalidThreshold):
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
	default:
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeDatabase, "Failed to update follow", err)
	}
}
