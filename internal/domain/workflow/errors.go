package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an action is not legal from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrInvalidInput is returned for malformed action payloads
	ErrInvalidInput = errors.New("invalid input")

	// ErrDependencyFailure is returned when an external collaborator call fails
	ErrDependencyFailure = errors.New("dependency failure")

	// ErrNotFound is returned for unknown assignment ids
	ErrNotFound = errors.New("assignment not found")
)

// GuardError reports the guard that blocked an otherwise permitted transition
type GuardError struct {
	Trigger Trigger
	State   State
	Cause   error
}

// Error implements error
func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: trigger %s from state %s: %v", ErrGuardFailed, e.Trigger, e.State, e.Cause)
}

// Unwrap exposes ErrGuardFailed for errors.Is
func (e *GuardError) Unwrap() error {
	return ErrGuardFailed
}

// ActionError describes a rejected action together with the status it was attempted from.
// Err is one of the sentinel errors above or wraps one. Allowed lists the triggers the
// graph accepts from Status when the rejection is a transition error.
type ActionError struct {
	Action  Trigger
	Status  State
	Reason  string
	Err     error
	Allowed []Trigger
}

// Error implements error
func (e *ActionError) Error() string {
	msg := e.Action.String()
	if e.Status != "" {
		msg += fmt.Sprintf(" from %s", e.Status)
	}
	msg += ": " + e.Err.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap exposes the sentinel for errors.Is
func (e *ActionError) Unwrap() error {
	return e.Err
}

// NewActionError builds an ActionError
func NewActionError(action Trigger, status State, err error, reason string) *ActionError {
	return &ActionError{
		Action: action,
		Status: status,
		Reason: reason,
		Err:    err,
	}
}

// WithAllowed records the triggers that were legal from the rejected status
func (e *ActionError) WithAllowed(allowed []Trigger) *ActionError {
	e.Allowed = allowed
	return e
}

// StatusOf extracts the current status carried by an ActionError, if any
func StatusOf(err error) (State, bool) {
	var actionErr *ActionError
	if errors.As(err, &actionErr) && actionErr.Status != "" {
		return actionErr.Status, true
	}
	return "", false
}

// AllowedOf extracts the legal triggers carried by an ActionError, if any
func AllowedOf(err error) []Trigger {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Allowed
	}
	return nil
}
