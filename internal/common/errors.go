// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Store errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrStore    = errors.New("store failure")

	// Input errors.
	ErrValidation = errors.New("validation failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConflictError reports a duplicate pairing tuple and carries the id of
// the existing record so callers can reuse it instead of retrying.
type ConflictError struct {
	Resource   string
	ExistingID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists (id=%d)", e.Resource, e.ExistingID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a conflict error referencing an existing record.
func NewConflictError(resource string, existingID int64) error {
	return &ConflictError{Resource: resource, ExistingID: existingID}
}

// ValidationError describes rejected input with enough detail to correct it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictingID extracts the existing record id from a conflict error,
// returning false when err is not a conflict.
func ConflictingID(err error) (int64, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.ExistingID, true
	}
	return 0, false
}
