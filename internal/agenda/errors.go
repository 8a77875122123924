package agenda

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotConflict is the expected, recoverable outcome of losing a
	// booking race or picking an occupied slot: the caller re-prompts
	// slot selection.
	ErrSlotConflict = errors.New("slot already holds an active appointment")

	ErrNotFound = errors.New("appointment not found")
)

// ValidationError reports a missing or unusable field on the caller's
// input. It is always caller-correctable and never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "must not be empty"}
}

// InvalidTransitionError reports an operation that is not legal for the
// appointment's current status. Unlike a ValidationError this indicates a
// caller logic fault, not bad user input.
type InvalidTransitionError struct {
	Status Status
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s appointment in status %q", e.Action, e.Status)
}

// PersistenceError wraps a store failure unmodified. On a write timeout
// the operation is reported failed rather than assumed applied; retrying
// with the same arguments is safe.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
