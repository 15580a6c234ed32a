// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
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
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidDates    = errors.New("invalid date range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Conflict errors
	ErrConflict = errors.New("conflict")

	// External service errors (soft failures - logged, never propagated
	// to the caller of a business operation)
	ErrExternalService = errors.New("external service error")
	ErrCacheDegraded   = errors.New("cache unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "plan", "stage", "badge"
	Op      string // Operation that failed, e.g., "Create", "Transition"
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

// Plan domain errors
var (
	ErrPlanNotFound        = NewDomainError("plan", "Find", ErrNotFound, "plan not found")
	ErrPlanAlreadyOpen     = NewDomainError("plan", "Create", ErrConflict, "user already has an open cessation plan")
	ErrPlanDatesInvalid    = NewDomainError("plan", "Validate", ErrInvalidDates, "target date must be after start date")
	ErrPlanStartTooOld     = NewDomainError("plan", "Validate", ErrInvalidDates, "start date cannot be more than 24 hours in the past")
	ErrPlanNotOwned        = NewDomainError("plan", "Authorize", ErrForbidden, "plan belongs to another user")
	ErrPlanNotCustomizable = NewDomainError("plan", "Authorize", ErrForbidden, "stages of a non-custom plan cannot be edited manually")
)

// Stage domain errors
var (
	ErrStageNotFound      = NewDomainError("stage", "Find", ErrNotFound, "stage not found")
	ErrStageOrderConflict = NewDomainError("stage", "Reorder", ErrConflict, "duplicate stage order within plan")
	ErrStageOrderInvalid  = NewDomainError("stage", "Reorder", ErrValidation, "stage orders must form a dense 1..N sequence")
	ErrStageDatesInvalid  = NewDomainError("stage", "Validate", ErrInvalidDates, "stage end date must be after start date")
)

// Badge domain errors
var (
	ErrBadgeNotFound       = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrBadgeAlreadyAwarded = NewDomainError("badge", "Award", ErrConflict, "badge already awarded to user")
	ErrEvaluatorConflict   = NewDomainError("badge", "Register", ErrConflict, "evaluator already registered for criteria type")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidDates) ||
		errors.Is(err, ErrStateTransition)
}

// IsForbidden checks if the error is a permission error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// IsSoft checks if the error is a soft failure that must be absorbed
// inside the engine instead of propagating to the caller.
func IsSoft(err error) bool {
	return errors.Is(err, ErrExternalService) || errors.Is(err, ErrCacheDegraded)
}
