// Package plan contains the cessation plan domain model. A plan is a user's
// quit journey with a start date, a target date, and a lifecycle status.
// This is the core of the business logic - there are no external dependencies here.
package plan

import (
	"fmt"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status defines the lifecycle state of a cessation plan.
type Status string

const (
	// StatusPlanning - the plan is created but its start date has not arrived.
	StatusPlanning Status = "PLANNING"
	// StatusActive - the plan is in progress.
	StatusActive Status = "ACTIVE"
	// StatusPaused - the user temporarily suspended the plan.
	StatusPaused Status = "PAUSED"
	// StatusCompleted - the plan finished successfully. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusAbandoned - the user stopped following the plan.
	StatusAbandoned Status = "ABANDONED"
	// StatusCancelled - the plan was cancelled; it can be restarted into PLANNING.
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks that the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusPaused, StatusCompleted, StatusAbandoned, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states with no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// IsOpen returns true for statuses that count against the single-open-plan rule.
func (s Status) IsOpen() bool {
	return s == StatusPlanning || s == StatusActive || s == StatusPaused
}

// OpenStatuses lists the statuses in which a user is considered to hold
// an open plan. A user may have at most one plan in any of these states.
func OpenStatuses() []Status {
	return []Status{StatusPlanning, StatusActive, StatusPaused}
}

// transitions is the plan lifecycle state machine. A requested transition is
// legal only if it appears in the row for the current status.
var transitions = map[Status][]Status{
	StatusPlanning:  {StatusActive, StatusCancelled},
	StatusActive:    {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused:    {StatusActive, StatusCancelled},
	StatusCompleted: {},
	StatusAbandoned: {StatusCancelled},
	StatusCancelled: {StatusPlanning},
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
		return shared.WrapError("plan", "Transition", shared.ErrInvalidInput,
			fmt.Sprintf("unknown status %q", to), nil)
	}
	if !CanTransition(from, to) {
		return shared.WrapError("plan", "Transition", shared.ErrStateTransition,
			fmt.Sprintf("cannot transition plan from %s to %s", from, to), nil)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// MaxStartBackdate is how far in the past a new plan's start date may lie.
const MaxStartBackdate = 24 * time.Hour

// Plan is a user's cessation journey.
type Plan struct {
	// ID is the internal unique identifier (UUID in string format).
	ID string

	// UserID references the owning user.
	UserID string

	// TemplateID references the plan template this plan was generated from,
	// empty for fully custom plans.
	TemplateID string

	// Reason is the user's motivation for quitting, shown back to them.
	Reason string

	// StartDate is when the plan begins.
	StartDate time.Time

	// TargetDate is the quit target. Always strictly after StartDate.
	TargetDate time.Time

	// Status is the current lifecycle state.
	Status Status

	// IsCustom controls whether stages may be edited manually. Template
	// generated plans are managed only by the time-driven sweep.
	IsCustom bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New validates input and constructs a plan in the PLANNING state.
// The id is assigned by the caller (commands generate UUIDs).
func New(id, userID, templateID, reason string, startDate, targetDate time.Time, isCustom bool, now time.Time) (*Plan, error) {
	if id == "" || userID == "" {
		return nil, shared.WrapError("plan", "Create", shared.ErrEmptyValue, "id and user id are required", nil)
	}
	if !targetDate.After(startDate) {
		return nil, shared.ErrPlanDatesInvalid
	}
	if startDate.Before(now.Add(-MaxStartBackdate)) {
		return nil, shared.ErrPlanStartTooOld
	}

	return &Plan{
		ID:         id,
		UserID:     userID,
		TemplateID: templateID,
		Reason:     reason,
		StartDate:  startDate,
		TargetDate: targetDate,
		Status:     StatusPlanning,
		IsCustom:   isCustom,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// TransitionTo applies a status transition after validating it against the
// state machine. The entity is not persisted here; commands do that.
func (p *Plan) TransitionTo(to Status, now time.Time) error {
	if err := ValidateTransition(p.Status, to); err != nil {
		return err
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

// OwnedBy reports whether the plan belongs to the given user.
func (p *Plan) OwnedBy(userID string) bool {
	return p.UserID == userID
}

// DueForActivation reports whether the sweep should promote this plan.
func (p *Plan) DueForActivation(now time.Time) bool {
	return p.Status == StatusPlanning && !p.StartDate.After(now)
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress carries the computed fields returned alongside a plan.
// These are never stored - they are derived from dates and status at read time.
type Progress struct {
	// CompletionPercent is elapsed/(target-start)*100 clamped to [0,100].
	CompletionPercent float64 `json:"completion_percent"`

	// DaysSinceStart is the number of whole days since the start date,
	// negative before the plan starts.
	DaysSinceStart int `json:"days_since_start"`

	// DaysToTarget is the number of whole days until the target date,
	// negative once the target has passed.
	DaysToTarget int `json:"days_to_target"`

	// Overdue is true when the target date has passed and the plan is
	// neither completed nor cancelled.
	Overdue bool `json:"overdue"`
}

// ComputeProgress derives the progress fields for the given moment.
func (p *Plan) ComputeProgress(now time.Time) Progress {
	total := p.TargetDate.Sub(p.StartDate)
	elapsed := now.Sub(p.StartDate)

	var percent float64
	if total > 0 {
		percent = float64(elapsed) / float64(total) * 100
	}

	return Progress{
		CompletionPercent: timeutil.ClampPercent(percent),
		DaysSinceStart:    timeutil.DaysBetween(p.StartDate, now),
		DaysToTarget:      timeutil.DaysBetween(now, p.TargetDate),
		Overdue:           now.After(p.TargetDate) && p.Status != StatusCompleted && p.Status != StatusCancelled,
	}
}
