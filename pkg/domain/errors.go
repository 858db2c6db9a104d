package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the concrete error types through errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
)

// ValidationError reports bad or missing input.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	switch {
	case e.Entity != "" && e.Field != "":
		return fmt.Sprintf("invalid %s %s: %s", e.Entity, e.Field, e.Message)
	case e.Entity != "":
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Message)
	default:
		return "invalid input: " + e.Message
	}
}

// Is matches ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// InvalidStateError reports a lifecycle precondition violation.
type InvalidStateError struct {
	Entity    EntityType
	ID        string
	State     string
	Operation string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s", e.Operation, e.Entity, e.ID, e.State)
}

// Is matches ErrInvalidState.
func (e InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// NotFoundError is returned when a referenced record is absent.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}

// Is matches ErrInvalidState; blocking rules guard lifecycle invariants.
func (e RuleViolationError) Is(target error) bool { return target == ErrInvalidState }

func invalid(entity EntityType, field, format string, args ...any) error {
	return ValidationError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}
