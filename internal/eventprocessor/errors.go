// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"errors"
	"strings"
)

var (
	// ErrNilPublisher is returned when a component is built without a publisher.
	ErrNilPublisher = errors.New("publisher cannot be nil")

	// ErrNilSubscriber is returned when a lane has no subscriber.
	ErrNilSubscriber = errors.New("subscriber cannot be nil")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownTransport is returned by NewBroker for an unsupported transport.
	ErrUnknownTransport = errors.New("unknown broker transport")

	// ErrBrokerClosed is returned when publishing through a closed broker.
	ErrBrokerClosed = errors.New("broker is closed")

	// ErrStreamNotFound is returned when the JetStream stream doesn't exist.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrDLQEntryNotFound is returned by the dead-letter store for unknown ids.
	ErrDLQEntryNotFound = errors.New("dead-letter entry not found")
)

// ErrorCategory categorizes errors for DLQ routing and metrics.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is the default category for unclassified errors.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryConnection indicates network or connection failures.
	ErrorCategoryConnection
	// ErrorCategoryTimeout indicates operation timeout.
	ErrorCategoryTimeout
	// ErrorCategoryValidation indicates data validation failures.
	ErrorCategoryValidation
	// ErrorCategoryDatabase indicates database operation failures.
	ErrorCategoryDatabase
	// ErrorCategoryCapacity indicates resource capacity issues.
	ErrorCategoryCapacity
)

// String returns the string representation of the error category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryDatabase:
		return "database"
	case ErrorCategoryCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// ParseErrorCategory is the inverse of String. Unknown names map to
// ErrorCategoryUnknown.
func ParseErrorCategory(s string) ErrorCategory {
	for c := ErrorCategoryConnection; c <= ErrorCategoryCapacity; c++ {
		if c.String() == s {
			return c
		}
	}
	return ErrorCategoryUnknown
}

// RetryableError represents an error that can be retried.
// These errors are typically transient (network issues, timeouts).
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError creates a new retryable error.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorize(message, cause),
	}
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// PermanentError represents an error that must not be retried: the message
// is dead-lettered on the first failure.
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError creates a new permanent error. Unclassified permanent
// errors are validation errors.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorize(message, cause)
	if category == ErrorCategoryUnknown {
		category = ErrorCategoryValidation
	}
	return &PermanentError{
		Message:  message,
		Cause:    cause,
		Category: category,
	}
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// IsRetryableError checks if the error is retryable.
func IsRetryableError(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// IsPermanentError checks if the error is permanent (non-retryable).
func IsPermanentError(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// CategoryOf returns the category carried by a classified error, or
// classifies the message of any other error.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr.Category
	}
	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return permErr.Category
	}
	return categorizeMessage(err.Error())
}

func categorize(message string, cause error) ErrorCategory {
	if c := categorizeMessage(message); c != ErrorCategoryUnknown {
		return c
	}
	if cause != nil {
		return categorizeMessage(cause.Error())
	}
	return ErrorCategoryUnknown
}

// categorizeMessage attempts to categorize an error based on its message.
func categorizeMessage(message string) ErrorCategory {
	m := strings.ToLower(message)
	switch {
	case containsAny(m, "connection", "connect", "refused", "reset", "network", "broken pipe"):
		return ErrorCategoryConnection
	case containsAny(m, "timeout", "deadline", "timed out"):
		return ErrorCategoryTimeout
	case containsAny(m, "invalid", "validation", "malformed", "parse", "unmarshal", "decode"):
		return ErrorCategoryValidation
	case containsAny(m, "database", "sql", "query", "constraint", "conflict"):
		return ErrorCategoryDatabase
	case containsAny(m, "capacity", "full", "limit", "exceeded"):
		return ErrorCategoryCapacity
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
