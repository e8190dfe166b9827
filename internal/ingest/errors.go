// Package ingest turns raw activity events into annotated records and folds
// them into the session and user-statistics aggregates.
package ingest

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned when a batch arrives without caller identity.
var ErrUnauthenticated = errors.New("ingest: caller identity required")

// ValidationError reports malformed or missing input. It is surfaced as is
// and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid activity: " + e.Reason
	}
	return fmt.Sprintf("invalid activity: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InternalError is an opaque processing failure. The cause is kept for logs.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error during %s", e.Op)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports that a required backing store is not wired.
// Callers see it as an InternalError.
type ConfigurationError struct {
	Component string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Component)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInternal reports whether err is an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
