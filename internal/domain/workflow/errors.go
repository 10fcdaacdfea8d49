package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition means the trigger has no route out of the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed means every route for the trigger was refused by its guard
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrUnknownState means the machine was built from a state it does not know
	ErrUnknownState = errors.New("unknown state")
)

// TransitionError describes a refused trigger. It matches ErrInvalidTransition,
// ErrGuardFailed or ErrUnknownState with errors.Is.
type TransitionError struct {
	From    State
	Trigger Trigger
	cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s from %s", e.cause, e.Trigger, e.From)
}

func (e *TransitionError) Unwrap() error {
	return e.cause
}

func refused(from State, trigger Trigger, cause error) error {
	return &TransitionError{From: from, Trigger: trigger, cause: cause}
}
