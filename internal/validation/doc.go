// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package validation provides struct validation using go-playground/validator v10.
//
// # Error Format
//
// Failures convert to the API's VALIDATION_ERROR body. A single failing field
// produces details {field, tag, value}; several produce details.fields, one
// entry per field. Field names are the JSON names of the request body.
//
// # Custom Rules
//
//   - notblank: the string contains at least one non-space rune
//
// # Thread Safety
//
// GetValidator initializes once and is safe for concurrent use; the
// validator caches struct metadata after the first call per type.
package validation
