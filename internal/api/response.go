// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/mediatrack/notifier/internal/logging"
	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// errBadPathParam is returned for a non-positive or non-numeric id.
var errBadPathParam = errors.New("invalid path parameter")

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes an envelope. Notification data changes on every write,
// so nothing is cacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess writes data with status. start feeds query_time_ms.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError writes an error envelope. err is logged, never returned to
// the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		event := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Error()
		}
		event.Str("code", code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondValidation writes a 400 with per-field details.
func respondValidation(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// decodeJSON reads a bounded body into v. Unknown fields are rejected.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// pathID parses a positive int64 chi URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", errBadPathParam, name, raw)
	}
	return id, nil
}

// getIntParam extracts an integer query parameter. Absent means
// defaultValue; present but malformed is an error.
func getIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
