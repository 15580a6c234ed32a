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
// REORDER STAGES COMMAND
// Rearranges the stages of a custom plan in one atomic operation. The
// requested orders must cover every live stage of the plan exactly once
// and form a dense 1..N sequence; everything is validated before any row
// is touched.
// ══════════════════════════════════════════════════════════════════════════════

// ReorderStagesCommand requests a bulk stage reorder.
type ReorderStagesCommand struct {
	// PlanID identifies the plan whose stages are reordered.
	PlanID string

	// UserID is the caller; must own the plan.
	UserID string

	// Assignments maps every live stage of the plan to its new order.
	Assignments []stage.OrderAssignment
}

// Validate validates the command.
func (c ReorderStagesCommand) Validate() error {
	if c.PlanID == "" {
		return errors.New("reorder_stages: plan_id is required")
	}
	if c.UserID == "" {
		return errors.New("reorder_stages: user_id is required")
	}
	if len(c.Assignments) == 0 {
		return errors.New("reorder_stages: assignments are required")
	}
	return nil
}

// ReorderStagesResult contains the result of a reorder.
type ReorderStagesResult struct {
	// Stages is the plan's stage list in the new order.
	Stages []*stage.Stage

	// ReorderedAt is when the reorder happened.
	ReorderedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReorderStagesHandler handles the ReorderStagesCommand.
type ReorderStagesHandler struct {
	stageRepo      stage.Repository
	planRepo       plan.Repository
	cache          CacheInvalidator
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewReorderStagesHandler creates a new handler.
func NewReorderStagesHandler(
	stageRepo stage.Repository,
	planRepo plan.Repository,
	cache CacheInvalidator,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ReorderStagesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReorderStagesHandler{
		stageRepo:      stageRepo,
		planRepo:       planRepo,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the command.
func (h *ReorderStagesHandler) Handle(ctx context.Context, cmd ReorderStagesCommand) (*ReorderStagesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("stage", "Reorder", shared.ErrValidation, "invalid command", err)
	}

	p, err := h.planRepo.GetByID(ctx, cmd.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(cmd.UserID) {
		return nil, shared.ErrPlanNotOwned
	}
	if !p.IsCustom {
		return nil, shared.ErrPlanNotCustomizable
	}

	if err := stage.ValidateOrderSet(cmd.Assignments); err != nil {
		return nil, err
	}

	// The assignment set must cover the plan's live stages exactly:
	// a partial reorder would leave holes in the 1..N sequence.
	current, err := h.stageRepo.ListByPlan(ctx, cmd.PlanID)
	if err != nil {
		return nil, err
	}
	if err := h.checkCoverage(current, cmd.Assignments); err != nil {
		return nil, err
	}

	if err := h.stageRepo.Reorder(ctx, cmd.PlanID, cmd.Assignments); err != nil {
		return nil, err
	}

	targets := make([]rediscache.InvalidationTarget, 0, len(cmd.Assignments)+2)
	for _, a := range cmd.Assignments {
		targets = append(targets, rediscache.InvalidationTarget{
			Prefix: rediscache.PrefixStage, EntityID: a.StageID,
		})
	}
	targets = append(targets,
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixPlan, EntityID: p.ID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: p.UserID},
	)
	h.cache.InvalidateMany(ctx, targets...)

	if err := h.eventPublisher.Publish(shared.NewStagesReorderedEvent(
		p.ID, p.UserID, len(cmd.Assignments))); err != nil {
		h.logger.Error("failed to publish reorder event", "plan_id", p.ID, "error", err)
	}

	stages, err := h.stageRepo.ListByPlan(ctx, cmd.PlanID)
	if err != nil {
		return nil, err
	}

	return &ReorderStagesResult{
		Stages:      stages,
		ReorderedAt: timeutil.Now(),
	}, nil
}

// checkCoverage verifies the assignments name each live stage exactly once.
func (h *ReorderStagesHandler) checkCoverage(current []*stage.Stage, assignments []stage.OrderAssignment) error {
	if len(assignments) != len(current) {
		return shared.ErrStageOrderInvalid
	}

	live := make(map[string]bool, len(current))
	for _, s := range current {
		live[s.ID] = true
	}
	for _, a := range assignments {
		if !live[a.StageID] {
			return shared.ErrStageNotFound
		}
	}
	return nil
}
