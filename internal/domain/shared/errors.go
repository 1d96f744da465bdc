// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidParams   = errors.New("invalid params")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrNoActiveSeason  = errors.New("no active season")
	ErrAlreadyRunning  = errors.New("already running")

	// Storage errors
	ErrStorage            = errors.New("storage error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "stats", "leaderboard", "world"
	Op      string // Operation that failed, e.g., "Merge", "Rank"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Stats domain errors
var (
	ErrUnknownMetric      = NewDomainError("stats", "Validate", ErrInvalidParams, "unknown metric name")
	ErrUnknownGranularity = NewDomainError("stats", "Validate", ErrInvalidParams, "unknown stat interval")
	ErrInvalidRoom        = NewDomainError("stats", "Validate", ErrInvalidID, "invalid room name")
	ErrInvalidUser        = NewDomainError("stats", "Validate", ErrInvalidID, "invalid user id")
)

// Leaderboard domain errors
var (
	ErrUnknownMode     = NewDomainError("leaderboard", "Validate", ErrInvalidParams, "unknown scoring mode")
	ErrSeasonNotFound  = NewDomainError("leaderboard", "FindSeason", ErrNotFound, "season not found")
	ErrEntryNotFound   = NewDomainError("leaderboard", "FindEntry", ErrNotFound, "leaderboard entry not found")
	ErrInvalidSeasonID = NewDomainError("leaderboard", "Validate", ErrInvalidFormat, "invalid season id")
)

// World domain errors
var (
	ErrRoomNotFound = NewDomainError("world", "FindRoom", ErrNotFound, "room not found")
	ErrUserNotFound = NewDomainError("world", "FindUser", ErrNotFound, "user not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidParams checks if the error is a caller-input validation error.
func IsInvalidParams(err error) bool {
	return errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsStorage checks if the error comes from a persistence backend.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrTimeout)
}
