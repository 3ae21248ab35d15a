// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package models

import (
	"time"
)

// APIResponse is the envelope of every HTTP response.
//
// Status is "success" with Data set, or "error" with Error set:
//
//	{
//	  "status": "success",
//	  "data": {"userId": 2, "count": 3, "limit": 100},
//	  "metadata": {"timestamp": "2026-10-01T12:00:00Z", "query_time_ms": 4}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes how a response was produced.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a machine-readable error code plus a human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes returned in APIError.Code.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeDatabase    = "DATABASE_ERROR"
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimit   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// PaginationInfo describes one page of a limited listing.
type PaginationInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NotificationPage is the body of the notification listing endpoint.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Pagination    PaginationInfo `json:"pagination"`
}
