package badge

import (
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
)

// Criteria types understood by the built-in evaluators.
const (
	CriteriaFirstPlanCreated = "first_plan_created"
	CriteriaStreakDays       = "streak_days"
	CriteriaStagesCompleted  = "stages_completed"
	CriteriaPlanCompleted    = "plan_completed"
)

// DefaultEvaluators returns the built-in evaluator set, one per criteria type.
func DefaultEvaluators() []Evaluator {
	return []Evaluator{
		FirstPlanEvaluator{},
		StreakEvaluator{},
		StagesCompletedEvaluator{},
		PlanCompletedEvaluator{},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// First plan created
// ─────────────────────────────────────────────────────────────────────────────

// FirstPlanEvaluator awards badges for creating the first cessation plan.
type FirstPlanEvaluator struct{}

// CriteriaType implements Evaluator.
func (FirstPlanEvaluator) CriteriaType() string { return CriteriaFirstPlanCreated }

// Evaluate returns true iff the triggering event is the creation of the
// user's first plan. The requirements carry no extra parameters.
func (FirstPlanEvaluator) Evaluate(_ *Requirements, ctx EventContext) (bool, error) {
	return ctx.EventType == shared.EventPlanCreated && ctx.IsFirstPlan, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Streak achieved
// ─────────────────────────────────────────────────────────────────────────────

// StreakEvaluator awards badges for reaching a smoke-free streak of at
// least requirements.days days.
type StreakEvaluator struct{}

// CriteriaType implements Evaluator.
func (StreakEvaluator) CriteriaType() string { return CriteriaStreakDays }

// Evaluate implements Evaluator.
func (StreakEvaluator) Evaluate(req *Requirements, ctx EventContext) (bool, error) {
	if ctx.EventType != shared.EventStreakUpdated {
		return false, nil
	}
	days, ok := req.IntParam("days")
	if !ok {
		return false, shared.WrapError("badge", "Evaluate", shared.ErrInvalidInput,
			"streak_days requirements missing integer \"days\"", nil)
	}
	return ctx.CurrentStreak >= days, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Stages completed
// ─────────────────────────────────────────────────────────────────────────────

// StagesCompletedEvaluator awards badges for completing at least
// requirements.count stages within a single plan.
type StagesCompletedEvaluator struct{}

// CriteriaType implements Evaluator.
func (StagesCompletedEvaluator) CriteriaType() string { return CriteriaStagesCompleted }

// Evaluate implements Evaluator.
func (StagesCompletedEvaluator) Evaluate(req *Requirements, ctx EventContext) (bool, error) {
	if ctx.EventType != shared.EventStageCompleted {
		return false, nil
	}
	count, ok := req.IntParam("count")
	if !ok {
		return false, shared.WrapError("badge", "Evaluate", shared.ErrInvalidInput,
			"stages_completed requirements missing integer \"count\"", nil)
	}
	return ctx.CompletedStagesInPlan >= count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Plan completed
// ─────────────────────────────────────────────────────────────────────────────

// PlanCompletedEvaluator awards badges for finishing a cessation plan.
type PlanCompletedEvaluator struct{}

// CriteriaType implements Evaluator.
func (PlanCompletedEvaluator) CriteriaType() string { return CriteriaPlanCompleted }

// Evaluate implements Evaluator.
func (PlanCompletedEvaluator) Evaluate(_ *Requirements, ctx EventContext) (bool, error) {
	return ctx.EventType == shared.EventPlanCompleted, nil
}
