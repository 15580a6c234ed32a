package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION STAGE COMMAND
// Moves a stage along its lifecycle. Manual stage edits are only allowed on
// custom plans; template-generated plans advance through the sweep.
// ══════════════════════════════════════════════════════════════════════════════

// TransitionStageCommand requests a stage status change.
type TransitionStageCommand struct {
	// StageID identifies the stage.
	StageID string

	// UserID is the caller; must own the stage's plan.
	UserID string

	// Target is the requested status.
	Target stage.Status
}

// Validate validates the command.
func (c TransitionStageCommand) Validate() error {
	if c.StageID == "" {
		return errors.New("transition_stage: stage_id is required")
	}
	if c.UserID == "" {
		return errors.New("transition_stage: user_id is required")
	}
	if !c.Target.IsValid() {
		return errors.New("transition_stage: unknown target status")
	}
	return nil
}

// TransitionStageResult contains the result of a stage transition.
type TransitionStageResult struct {
	// Stage is the stage after the transition.
	Stage *stage.Stage

	// PreviousStatus is the status before the transition.
	PreviousStatus stage.Status

	// CompletedStages is the plan's completed stage count after the
	// transition. Only populated when the target was COMPLETED.
	CompletedStages int

	// TransitionedAt is when the transition happened.
	TransitionedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TransitionStageHandler handles the TransitionStageCommand.
type TransitionStageHandler struct {
	stageRepo      stage.Repository
	planRepo       plan.Repository
	cache          CacheInvalidator
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewTransitionStageHandler creates a new handler.
func NewTransitionStageHandler(
	stageRepo stage.Repository,
	planRepo plan.Repository,
	cache CacheInvalidator,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *TransitionStageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionStageHandler{
		stageRepo:      stageRepo,
		planRepo:       planRepo,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the command.
func (h *TransitionStageHandler) Handle(ctx context.Context, cmd TransitionStageCommand) (*TransitionStageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("stage", "Transition", shared.ErrValidation, "invalid command", err)
	}

	s, err := h.stageRepo.GetByID(ctx, cmd.StageID)
	if err != nil {
		return nil, err
	}

	p, err := h.planRepo.GetByID(ctx, s.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(cmd.UserID) {
		return nil, shared.ErrPlanNotOwned
	}
	if !p.IsCustom {
		return nil, shared.ErrPlanNotCustomizable
	}

	previous := s.Status
	now := timeutil.Now()
	if err := s.TransitionTo(cmd.Target, now); err != nil {
		return nil, err
	}

	if err := h.stageRepo.Update(ctx, s); err != nil {
		return nil, err
	}

	h.cache.InvalidateMany(ctx,
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixStage, EntityID: s.ID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixPlan, EntityID: s.PlanID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: p.UserID},
	)

	h.publish(shared.NewStageStatusChangedEvent(
		s.ID, s.PlanID, p.UserID, string(previous), string(s.Status)))

	result := &TransitionStageResult{
		Stage:          s,
		PreviousStatus: previous,
		TransitionedAt: now,
	}

	if s.Status == stage.StatusCompleted {
		// Recounted after the write so the event carries the count
		// including this stage.
		completed, err := h.stageRepo.CountCompletedByPlan(ctx, s.PlanID)
		if err != nil {
			h.logger.Error("failed to count completed stages",
				"plan_id", s.PlanID, "error", err)
		} else {
			result.CompletedStages = completed
			h.publish(shared.NewStageCompletedEvent(s.ID, s.PlanID, p.UserID, completed))
		}
	}

	return result, nil
}

func (h *TransitionStageHandler) publish(event shared.Event) {
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Error("failed to publish event",
			"event_type", event.EventType(), "aggregate_id", event.AggregateID(), "error", err)
	}
}
