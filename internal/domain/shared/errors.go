// Package shared contains error kinds and helpers used across the grade-hub
// domain packages. This package has zero external dependencies.
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

	// Validation errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrInvalidFormat = errors.New("invalid format")

	// Batch errors
	ErrMalformedBatch = errors.New("malformed batch")

	// Invariant violations. Never recovered.
	ErrAmbiguousMerge = errors.New("ambiguous merge")

	// Concurrency errors
	ErrLocked = errors.New("resource locked by another writer")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "grade", "identity", "session"
	Op      string // Operation that failed, e.g., "Resolve", "AmendWritten"
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

// Malformed builds a MalformedBatch error for the given operation.
func Malformed(op, format string, args ...any) *DomainError {
	return NewDomainError("batch", op, ErrMalformedBatch, fmt.Sprintf(format, args...))
}

// Identity domain errors
var (
	ErrStudentNotFound      = NewDomainError("identity", "Resolve", ErrNotFound, "student id not registered")
	ErrInternalIDNotFound   = NewDomainError("identity", "Reverse", ErrNotFound, "internal id not registered")
	ErrStudentAlreadyExists = NewDomainError("identity", "Rename", ErrAlreadyExists, "student id already registered")
	ErrEmptyStudentID       = NewDomainError("identity", "Validate", ErrEmptyValue, "student id is empty")
)

// Grade domain errors
var (
	ErrRecordNotFound      = NewDomainError("grade", "Get", ErrNotFound, "grade record not found")
	ErrRecordAlreadyExists = NewDomainError("grade", "Insert", ErrAlreadyExists, "grade record already exists")
	ErrSessionNotSet       = NewDomainError("session", "Current", ErrNotFound, "session marker not set")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsMalformedBatch checks if the error must abort a whole batch.
func IsMalformedBatch(err error) bool {
	return errors.Is(err, ErrMalformedBatch)
}

// IsAmbiguousMerge checks if the error is a merge invariant violation.
func IsAmbiguousMerge(err error) bool {
	return errors.Is(err, ErrAmbiguousMerge)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrInvalidFormat)
}
