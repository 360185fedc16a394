// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every error surfaced to callers of the consistency core is an AppError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal         = "INTERNAL_ERROR"
	CodeTransientStorage = "TRANSIENT_STORAGE_ERROR"

	// Validation errors (400)
	CodeValidation           = "VALIDATION_ERROR"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict      = "CONFLICT"
	CodeIntegrity     = "INTEGRITY_ERROR"
	CodeHasDependents = "HAS_DEPENDENTS"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (entity, id, counts...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewConfirmationRequired is returned when a destructive operation is called without explicit confirmation.
func NewConfirmationRequired(operation string) *AppError {
	return &AppError{
		Code:       CodeConfirmationRequired,
		Message:    fmt.Sprintf("%s requires explicit confirmation", operation),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"operation": operation},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewTransientStorage wraps a storage failure the caller may retry
// (lock contention, serialization failure, timeout, lost connection).
func NewTransientStorage(op string, err error) *AppError {
	return &AppError{
		Code:       CodeTransientStorage,
		Message:    fmt.Sprintf("%s could not complete, retry later", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewIntegrity creates a constraint violation error (409).
func NewIntegrity(message string) *AppError {
	return &AppError{
		Code:       CodeIntegrity,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewHasDependents is returned by a non-cascading delete refused because dependent rows exist.
func NewHasDependents(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeHasDependents,
		Message:    fmt.Sprintf("%s is referenced by other records", entity),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether the first AppError in the chain carries code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsTransient checks if error is CodeTransientStorage
func IsTransient(err error) bool {
	return HasCode(err, CodeTransientStorage)
}

// IsIntegrity checks if error is CodeIntegrity
func IsIntegrity(err error) bool {
	return HasCode(err, CodeIntegrity)
}
