// Package errors defines the error taxonomy shared by the watchlist engine
// and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Kind is the coarse classification of an error
type Kind string

const (
	// KindValidation marks a malformed inbound record or request. The
	// offending record is skipped and reported, never aborts a batch.
	KindValidation Kind = "VALIDATION"
	// KindNotFound marks a triage operation referencing an unknown alert
	KindNotFound Kind = "NOT_FOUND"
	// KindConflict marks a lost optimistic-concurrency race on a triage
	// transition. Callers should re-fetch and retry or treat the alert as
	// already handled.
	KindConflict Kind = "CONFLICT"
	// KindPersistence marks a transient storage failure after retries
	KindPersistence Kind = "PERSISTENCE"
)

// Error carries a Kind, a human readable message and an optional cause
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	cause error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains
func (e *Error) Unwrap() error { return e.cause }

// E builds a new error of the given kind
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Validation builds a validation error
func Validation(format string, args ...interface{}) *Error {
	return E(KindValidation, format, args...)
}

// NotFound builds a not-found error
func NotFound(format string, args ...interface{}) *Error {
	return E(KindNotFound, format, args...)
}

// Conflict builds a conflict error
func Conflict(format string, args ...interface{}) *Error {
	return E(KindConflict, format, args...)
}

// Persistence wraps a storage failure
func Persistence(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindPersistence, cause, format, args...)
}

// KindOf returns the kind of err, or empty string for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) has the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
