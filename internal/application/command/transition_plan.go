package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION PLAN COMMAND
// Moves a plan along its lifecycle. The transition table in the plan domain
// is the single source of truth; anything it does not allow is rejected with
// an error naming both states.
// ══════════════════════════════════════════════════════════════════════════════

// TransitionPlanCommand requests a plan status change.
type TransitionPlanCommand struct {
	// PlanID identifies the plan.
	PlanID string

	// UserID is the caller; must own the plan.
	UserID string

	// Target is the requested status.
	Target plan.Status
}

// Validate validates the command.
func (c TransitionPlanCommand) Validate() error {
	if c.PlanID == "" {
		return errors.New("transition_plan: plan_id is required")
	}
	if c.UserID == "" {
		return errors.New("transition_plan: user_id is required")
	}
	if !c.Target.IsValid() {
		return errors.New("transition_plan: unknown target status")
	}
	return nil
}

// TransitionPlanResult contains the result of a plan transition.
type TransitionPlanResult struct {
	// Plan is the plan after the transition.
	Plan *plan.Plan

	// PreviousStatus is the status before the transition.
	PreviousStatus plan.Status

	// TransitionedAt is when the transition happened.
	TransitionedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TransitionPlanHandler handles the TransitionPlanCommand.
type TransitionPlanHandler struct {
	planRepo       plan.Repository
	cache          CacheInvalidator
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewTransitionPlanHandler creates a new handler.
func NewTransitionPlanHandler(
	planRepo plan.Repository,
	cache CacheInvalidator,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *TransitionPlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionPlanHandler{
		planRepo:       planRepo,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the command.
func (h *TransitionPlanHandler) Handle(ctx context.Context, cmd TransitionPlanCommand) (*TransitionPlanResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("plan", "Transition", shared.ErrValidation, "invalid command", err)
	}

	p, err := h.planRepo.GetByID(ctx, cmd.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(cmd.UserID) {
		return nil, shared.ErrPlanNotOwned
	}

	previous := p.Status
	now := timeutil.Now()
	if err := p.TransitionTo(cmd.Target, now); err != nil {
		return nil, err
	}

	if err := h.planRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	h.cache.InvalidateMany(ctx,
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixPlan, EntityID: p.ID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: p.UserID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixStats, EntityID: p.UserID},
	)

	h.publish(shared.NewPlanStatusChangedEvent(p.ID, p.UserID, string(previous), string(p.Status)))
	if p.Status == plan.StatusCompleted {
		h.publish(shared.NewPlanCompletedEvent(p.ID, p.UserID))
	}

	return &TransitionPlanResult{
		Plan:           p,
		PreviousStatus: previous,
		TransitionedAt: now,
	}, nil
}

func (h *TransitionPlanHandler) publish(event shared.Event) {
	if err := h.eventPublisher.Publish(event); err != nil {
		h.logger.Error("failed to publish event",
			"event_type", event.EventType(), "aggregate_id", event.AggregateID(), "error", err)
	}
}
