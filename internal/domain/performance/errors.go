package performance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsufficientScopeError means the actor may not read the employee's performance data.
type InsufficientScopeError struct {
	ActorID    uuid.UUID
	EmployeeID uuid.UUID
}

func (e *InsufficientScopeError) Error() string {
	return fmt.Sprintf("actor %s may not access employee %s", e.ActorID, e.EmployeeID)
}

// GenerationParseError means the provider output failed schema validation on every attempt.
type GenerationParseError struct {
	Reason   string
	Attempts int
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("generation output unparsable after %d attempt(s): %s", e.Attempts, e.Reason)
}

// GenerationTimeoutError means the overall generation deadline elapsed. Nothing was written.
type GenerationTimeoutError struct {
	Stage    string
	Deadline time.Duration
	Cause    error
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("generation exceeded %s deadline during %s", e.Deadline, e.Stage)
}

func (e *GenerationTimeoutError) Unwrap() error { return e.Cause }

// EditConflictError means the review changed underneath the caller, or its state forbids the write.
type EditConflictError struct {
	ReviewID uuid.UUID
	Reason   string
	Cause    error
}

func (e *EditConflictError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("review %s was modified concurrently", e.ReviewID)
	}
	return fmt.Sprintf("review %s: %s", e.ReviewID, e.Reason)
}

func (e *EditConflictError) Unwrap() error { return e.Cause }

type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ValidationError is caller input the pipeline refuses before doing any work.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func IsInsufficientScope(err error) bool {
	var target *InsufficientScopeError
	return errors.As(err, &target)
}

func IsGenerationParse(err error) bool {
	var target *GenerationParseError
	return errors.As(err, &target)
}

func IsGenerationTimeout(err error) bool {
	var target *GenerationTimeoutError
	return errors.As(err, &target)
}

func IsEditConflict(err error) bool {
	var target *EditConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
