package badge

import (
	"fmt"
	"log/slog"

	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// EventContext carries the facts about a domain event that evaluators judge
// eligibility against. It is an open record: only UserID and EventType are
// always present, the rest is event-specific.
type EventContext struct {
	UserID    string
	EventType shared.EventType

	// PlanID of the plan involved, if any.
	PlanID string

	// CurrentStreak is the user's smoke-free streak in days
	// (streak_updated events).
	CurrentStreak int

	// CompletedStagesInPlan is the count of completed stages in the plan
	// after the triggering transition (stage_completed events).
	CompletedStagesInPlan int

	// IsFirstPlan is true when the triggering plan is the user's first
	// (plan.created events).
	IsFirstPlan bool
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATORS
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator judges whether a badge's requirements are met by an event.
// Each evaluator owns exactly one criteria type. Dispatch is a map lookup on
// that type rather than a first-match scan over a list, so registration order
// can never silently decide which evaluator wins.
type Evaluator interface {
	// CriteriaType returns the requirements discriminator this evaluator owns.
	CriteriaType() string

	// Evaluate judges eligibility. Requirements are already parsed; per-type
	// parameter validation (e.g. "days") happens here, not globally.
	Evaluate(req *Requirements, ctx EventContext) (bool, error)
}

// Registry holds the registered evaluators keyed by criteria type.
type Registry struct {
	evaluators map[string]Evaluator
	logger     *slog.Logger
}

// NewRegistry creates a registry with the given evaluators. Two evaluators
// claiming the same criteria type would make dispatch an unannounced
// override, so duplicates are rejected here.
func NewRegistry(logger *slog.Logger, evaluators ...Evaluator) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		evaluators: make(map[string]Evaluator, len(evaluators)),
		logger:     logger,
	}
	for _, ev := range evaluators {
		criteriaType := ev.CriteriaType()
		if criteriaType == "" {
			return nil, shared.WrapError("badge", "Register", shared.ErrEmptyValue,
				"evaluator has empty criteria type", nil)
		}
		if _, exists := r.evaluators[criteriaType]; exists {
			return nil, shared.WrapError("badge", "Register", shared.ErrConflict,
				fmt.Sprintf("evaluator already registered for criteria type %q", criteriaType), nil)
		}
		r.evaluators[criteriaType] = ev
	}
	return r, nil
}

// CanHandle reports whether any registered evaluator owns the criteria type.
func (r *Registry) CanHandle(criteriaType string) bool {
	_, ok := r.evaluators[criteriaType]
	return ok
}

// CheckEligibility parses the badge's requirements, dispatches to the
// evaluator for its criteria type, and returns the verdict.
//
// Any problem - malformed requirements, unknown criteria type, evaluator
// error - yields false and a log line. Badge evaluation must never fail the
// business operation that triggered it.
func (r *Registry) CheckEligibility(b *Badge, ctx EventContext) bool {
	req, err := ParseRequirements(b.Requirements)
	if err != nil {
		r.logger.Warn("badge has malformed requirements",
			"badge_id", b.ID,
			"badge_name", b.Name,
			"error", err,
		)
		return false
	}

	ev, ok := r.evaluators[req.CriteriaType]
	if !ok {
		r.logger.Warn("no evaluator for criteria type",
			"badge_id", b.ID,
			"criteria_type", req.CriteriaType,
		)
		return false
	}

	eligible, err := ev.Evaluate(req, ctx)
	if err != nil {
		r.logger.Warn("badge evaluator failed",
			"badge_id", b.ID,
			"criteria_type", req.CriteriaType,
			"error", err,
		)
		return false
	}

	return eligible
}
