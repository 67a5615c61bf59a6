package moderation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error kinds returned by the engine. Typed errors match them with errors.Is.
var (
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrPublishPrecondition = errors.New("publish precondition failed")
	ErrConfiguration       = errors.New("moderation configuration error")
	ErrPersistence         = errors.New("moderation persistence error")

	ErrReviewableNotFound = errors.New("reviewable not found")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrContainerNotFound  = errors.New("container not found")
	ErrUnitOfWorkClosed   = errors.New("unit of work already committed or rolled back")
	ErrReviewableExists   = errors.New("reviewable already exists")
)

// Publication preconditions, in the order they are checked.
const (
	ConditionPrimaryArtifact = "primary_artifact"
	ConditionProvider        = "provider"
	ConditionSubjects        = "subjects"
)

// InvalidTransitionError reports a trigger that is not available in the current
// state, either because the table does not declare it or because a guard vetoed it.
type InvalidTransitionError struct {
	Trigger       Trigger
	State         State
	ValidTriggers []Trigger
}

func (e *InvalidTransitionError) Error() string {
	valid := make([]string, len(e.ValidTriggers))
	for i, t := range e.ValidTriggers {
		valid[i] = string(t)
	}
	return fmt.Sprintf("cannot %s from state %s (valid triggers: [%s])",
		e.Trigger, e.State, strings.Join(valid, ", "))
}

// Is matches ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PublishPreconditionError names the first publish precondition that failed.
type PublishPreconditionError struct {
	Condition string
}

func (e *PublishPreconditionError) Error() string {
	return fmt.Sprintf("cannot publish: %s precondition not met", e.Condition)
}

// Is matches ErrPublishPrecondition.
func (e *PublishPreconditionError) Is(target error) bool {
	return target == ErrPublishPrecondition
}

// ConfigurationError marks malformed provider configuration.
type ConfigurationError struct {
	ProviderID uuid.UUID
	Reason     string
	Err        error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.ProviderID != uuid.Nil {
		msg += " for provider " + e.ProviderID.String()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a storage failure inside a unit of work.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsInvalidTransitionError reports whether the trigger was not available.
func IsInvalidTransitionError(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsPublishPreconditionError reports whether publication was refused.
// FailedCondition names the condition.
func IsPublishPreconditionError(err error) bool {
	return errors.Is(err, ErrPublishPrecondition)
}

// IsConfigurationError reports whether a provider or item is misconfigured.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsPersistenceError reports whether the store failed inside a unit of work.
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// FailedCondition returns the precondition named by a PublishPreconditionError, or "".
func FailedCondition(err error) string {
	var pe *PublishPreconditionError
	if errors.As(err, &pe) {
		return pe.Condition
	}
	return ""
}

// NewEngine errors.
var (
	ErrStoreRequired     = errors.New("moderation engine requires a store")
	ErrProvidersRequired = errors.New("moderation engine requires a provider source")
)
