package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested post or comment was not found upstream
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNothingPending indicates an approve/reject call with no pending item
	ErrNothingPending = errors.New("no pending response")
)

// ValidationError represents a configuration or input validation failure
// with the offending field named. It fails fast at the call that
// introduced it and is never retried.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Is allows errors.Is(err, ErrInvalidInput) to match validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
