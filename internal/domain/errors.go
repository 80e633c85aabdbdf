package domain

import (
	"errors"
	"strings"
)

// Sentinel errors shared by services and repositories. Controllers map them to HTTP statuses.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrRegistrationExists is returned when the user already holds an active (registered or waitlisted) registration.
	ErrRegistrationExists = errors.New("active registration already exists")
	// ErrRegistrationClosed is returned when the event does not accept registrations (not published or already ended).
	ErrRegistrationClosed = errors.New("registration is closed for this event")
)

// ValidationError describes an input or invariant violation caught before any mutation.
// Fields lists the offending fields or, for status transitions, the allowed target states.
type ValidationError struct {
	Message string
	Fields  []string
}

// NewValidationError returns a ValidationError with the given message and fields.
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match every ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
