package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition: from, to, or event cannot be nil")
	ErrInvalidEvent      = errors.New("invalid event: event cannot be nil")
	ErrInvalidState      = errors.New("invalid state: state cannot be nil")
)

// ErrNoTransitionAvailable indicates no valid transition exists for the given state/event combination.
type ErrNoTransitionAvailable struct {
	StateName string
	EventName string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.StateName, e.EventName)
}

// NewErrNoTransitionAvailable reports an event not declared for a state.
func NewErrNoTransitionAvailable(stateName, eventName string) *ErrNoTransitionAvailable {
	return &ErrNoTransitionAvailable{
		StateName: stateName,
		EventName: eventName,
	}
}

// ErrTransitionRejected indicates all possible transitions were blocked by guard functions.
type ErrTransitionRejected struct {
	StateName string
	EventName string
}

func (e *ErrTransitionRejected) Error() string {
	return fmt.Sprintf("transition from state '%s' for event '%s' was rejected by guards", e.StateName, e.EventName)
}

// NewErrTransitionRejected reports an event every guard refused.
func NewErrTransitionRejected(stateName, eventName string) *ErrTransitionRejected {
	return &ErrTransitionRejected{
		StateName: stateName,
		EventName: eventName,
	}
}

// ActionError wraps the error returned by the action at Index.
type ActionError struct {
	Index     int
	StateName string
	EventName string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d failed on '%s' from state '%s': %v", e.Index, e.EventName, e.StateName, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// IsNoTransitionAvailableError matches *ErrNoTransitionAvailable.
func IsNoTransitionAvailableError(err error) bool {
	var e *ErrNoTransitionAvailable
	return errors.As(err, &e)
}

// IsTransitionRejectedError matches *ErrTransitionRejected.
func IsTransitionRejectedError(err error) bool {
	var e *ErrTransitionRejected
	return errors.As(err, &e)
}

// ActionCause returns the error an action produced, or err itself when it is not an action failure.
func ActionCause(err error) error {
	var e *ActionError
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}
