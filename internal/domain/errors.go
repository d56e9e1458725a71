package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrInvariant       = errors.New("invariant violation")
	ErrStateTransition = errors.New("illegal state transition")
	ErrAccessDenied    = errors.New("access denied")
	ErrImmutable       = errors.New("immutable")
	ErrStaleWrite      = errors.New("stale write")
	ErrNotFound        = errors.New("not found")
)

// Error is a domain error of a given kind. Field is set for field-level
// validation failures.
type Error struct {
	Kind    error
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func validationError(field, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func invariantError(format string, args ...any) error {
	return &Error{Kind: ErrInvariant, Message: fmt.Sprintf(format, args...)}
}

func accessDenied(format string, args ...any) error {
	return &Error{Kind: ErrAccessDenied, Message: fmt.Sprintf(format, args...)}
}

func immutableError(format string, args ...any) error {
	return &Error{Kind: ErrImmutable, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing document of the given kind.
func NotFound(kind, id string) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// StaleWrite reports a version mismatch on a document write.
func StaleWrite(kind, id string, expected int64) error {
	return &Error{Kind: ErrStaleWrite, Message: fmt.Sprintf("%s %q was modified concurrently (expected version %d)", kind, id, expected)}
}

// Validation builds a field-level validation error. Exported for use cases that
// parse raw caller input.
func Validation(field, format string, args ...any) error {
	return validationError(field, format, args...)
}

// Invariant builds an invariant violation.
func Invariant(format string, args ...any) error {
	return invariantError(format, args...)
}

// TransitionError is returned when a status change is not an edge of the
// entity's state machine.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrStateTransition }

// CheckVersion fails with ErrStaleWrite when the caller's version does not
// match the stored one.
func CheckVersion(kind, id string, stored, expected int64) error {
	if stored != expected {
		return StaleWrite(kind, id, expected)
	}
	return nil
}
