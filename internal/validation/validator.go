// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package validation validates API requests and wire events with
// go-playground/validator v10. One validator instance is shared; it reports
// fields by their JSON name and adds a notblank rule.
//
//	type RateRequest struct {
//	    Username string `json:"username" validate:"required,notblank,max=255"`
//	    Rating   *int   `json:"rating" validate:"omitempty,min=0,max=10"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError represents a single field validation error with structured information.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the parameter for the validation tag (e.g., "100" for "max=100").
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the actual value that failed validation.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError represents a collection of validation errors.
// It provides methods to convert errors to the application's APIError format.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	var messages []string
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}

	return strings.Join(messages, "; ")
}

// APIError mirrors the API error body without importing the api package.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts validation errors to a VALIDATION_ERROR body.
func (ve *RequestValidationError) ToAPIError() *APIError {
	if len(ve.errors) == 0 {
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Validation failed",
		}
	}

	// Single error - use simple message
	if len(ve.errors) == 1 {
		err := ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
				"value": err.value,
			},
		}
	}

	// Multiple errors - list all fields
	fields := make([]map[string]interface{}, len(ve.errors))
	var messages []string

	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
		messages = append(messages, fmt.Sprintf("%s: %s", err.field, err.message))
	}

	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{
			"fields": fields,
		},
	}
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(jsonFieldName)
		if err := validate.RegisterValidation("notblank", notBlank); err != nil {
			panic(fmt.Sprintf("register notblank validator: %v", err))
		}
	})

	return validate
}

// jsonFieldName reports fields by their JSON name so errors match the
// request body the client sent.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// notBlank rejects strings made only of whitespace.
func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return true
	}
	return strings.IndexFunc(f.String(), func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

// ValidateStruct returns nil when s is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	v := GetValidator()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	// Convert validator errors to our RequestValidationError type using errors.As
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		// Unexpected error type - wrap it
		return &RequestValidationError{
			errors: []ValidationError{
				{
					field:   "unknown",
					tag:     "unknown",
					message: err.Error(),
				},
			},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps validation tags to message templates.
// Templates use %s for field name and %p for parameter value.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"notblank": "%s must not be blank",
	"uuid":     "%s must be a valid UUID",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof":   "%s must be one of: %s",
	"nefield": "%s must differ from %s",
	"gte":     "%s must be greater than or equal to %s",
	"lte":     "%s must be less than or equal to %s",
	"gt":      "%s must be greater than %s",
	"lt":      "%s must be less than %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	// Check simple templates (no param)
	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}

	// Check templates with param
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	// Handle min/max with type-specific messages
	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max validation with type-specific messages.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	isString := fe.Kind().String() == "string"

	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
