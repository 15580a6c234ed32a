// Package stage contains the plan stage domain model. A stage is a time-boxed
// phase within a cessation plan with its own lifecycle and a dense 1..N order.
package stage

import (
	"fmt"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status defines the lifecycle state of a plan stage.
type Status string

const (
	// StatusPending - the stage has not started yet.
	StatusPending Status = "PENDING"
	// StatusActive - the stage is in progress.
	StatusActive Status = "ACTIVE"
	// StatusCompleted - the stage finished. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusSkipped - the stage was skipped; it can be reset to PENDING.
	StatusSkipped Status = "SKIPPED"
)

// IsValid checks that the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states with no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// transitions is the stage lifecycle state machine.
var transitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusSkipped},
	StatusActive:    {StatusCompleted, StatusSkipped, StatusPending},
	StatusCompleted: {},
	StatusSkipped:   {StatusPending},
}

// CanTransition reports whether the transition from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive validation error for an illegal
// transition, naming both states.
func ValidateTransition(from, to Status) error {
	if !to.IsValid() {
		return shared.WrapError("stage", "Transition", shared.ErrInvalidInput,
			fmt.Sprintf("unknown status %q", to), nil)
	}
	if !CanTransition(from, to) {
		return shared.WrapError("stage", "Transition", shared.ErrStateTransition,
			fmt.Sprintf("cannot transition stage from %s to %s", from, to), nil)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Stage is a time-boxed phase within a cessation plan.
type Stage struct {
	// ID is the internal unique identifier (UUID in string format).
	ID string

	// PlanID references the owning plan.
	PlanID string

	// TemplateStageID references the template stage this one was generated
	// from, empty for manually created stages.
	TemplateStageID string

	// Order is the position within the plan. Unique per plan and dense:
	// the orders of a plan's stages always form 1..N.
	Order int

	// Title is the stage headline, e.g. "Cut down to 5 per day".
	Title string

	// StartDate and EndDate bound the stage in time. Both optional.
	StartDate *time.Time
	EndDate   *time.Time

	// Status is the current lifecycle state.
	Status Status

	// Deleted marks a soft-deleted stage. Soft-deleted stages are excluded
	// from order validation and listing.
	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New validates input and constructs a stage in the PENDING state.
func New(id, planID, title string, order int, startDate, endDate *time.Time, now time.Time) (*Stage, error) {
	if id == "" || planID == "" {
		return nil, shared.WrapError("stage", "Create", shared.ErrEmptyValue, "id and plan id are required", nil)
	}
	if title == "" {
		return nil, shared.WrapError("stage", "Create", shared.ErrEmptyValue, "title is required", nil)
	}
	if order < 1 {
		return nil, shared.WrapError("stage", "Create", shared.ErrValueOutOfRange, "stage order must be positive", nil)
	}
	if startDate != nil && endDate != nil && !endDate.After(*startDate) {
		return nil, shared.ErrStageDatesInvalid
	}

	return &Stage{
		ID:        id,
		PlanID:    planID,
		Title:     title,
		Order:     order,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionTo applies a status transition after validating it.
func (s *Stage) TransitionTo(to Status, now time.Time) error {
	if err := ValidateTransition(s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// DueForActivation reports whether the sweep should promote this stage.
// The owning plan must also be ACTIVE; repositories enforce that in the query.
func (s *Stage) DueForActivation(now time.Time) bool {
	return s.Status == StatusPending && s.StartDate != nil && !s.StartDate.After(now)
}

// ══════════════════════════════════════════════════════════════════════════════
// REORDERING
// ══════════════════════════════════════════════════════════════════════════════

// OrderAssignment pairs a stage ID with its requested final order.
type OrderAssignment struct {
	StageID string
	Order   int
}

// ValidateOrderSet checks that the requested orders form a permutation of
// 1..N with no gaps or duplicates. It must pass before any write happens;
// the two-phase batch update in the repository assumes it.
func ValidateOrderSet(assignments []OrderAssignment) error {
	n := len(assignments)
	if n == 0 {
		return shared.WrapError("stage", "Reorder", shared.ErrEmptyValue, "no stages to reorder", nil)
	}

	seenOrder := make(map[int]bool, n)
	seenStage := make(map[string]bool, n)
	for _, a := range assignments {
		if a.StageID == "" {
			return shared.WrapError("stage", "Reorder", shared.ErrEmptyValue, "stage id is required", nil)
		}
		if seenStage[a.StageID] {
			return shared.WrapError("stage", "Reorder", shared.ErrInvalidInput,
				fmt.Sprintf("stage %s appears twice", a.StageID), nil)
		}
		seenStage[a.StageID] = true

		if a.Order < 1 || a.Order > n {
			return shared.ErrStageOrderInvalid
		}
		if seenOrder[a.Order] {
			return shared.ErrStageOrderInvalid
		}
		seenOrder[a.Order] = true
	}

	return nil
}
