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
// DELETE STAGE COMMAND
// Soft-deletes a stage from a custom plan. The row stays for audit but
// releases its order slot, so the remaining stages can be reordered into a
// dense sequence afterwards.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStageCommand requests a stage soft delete.
type DeleteStageCommand struct {
	// StageID identifies the stage.
	StageID string

	// UserID is the caller; must own the stage's plan.
	UserID string
}

// Validate validates the command.
func (c DeleteStageCommand) Validate() error {
	if c.StageID == "" {
		return errors.New("delete_stage: stage_id is required")
	}
	if c.UserID == "" {
		return errors.New("delete_stage: user_id is required")
	}
	return nil
}

// DeleteStageResult contains the result of a stage deletion.
type DeleteStageResult struct {
	// StageID is the deleted stage.
	StageID string

	// PlanID is the stage's plan.
	PlanID string

	// DeletedAt is when the deletion happened.
	DeletedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStageHandler handles the DeleteStageCommand.
type DeleteStageHandler struct {
	stageRepo      stage.Repository
	planRepo       plan.Repository
	cache          CacheInvalidator
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewDeleteStageHandler creates a new handler.
func NewDeleteStageHandler(
	stageRepo stage.Repository,
	planRepo plan.Repository,
	cache CacheInvalidator,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *DeleteStageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteStageHandler{
		stageRepo:      stageRepo,
		planRepo:       planRepo,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the command.
func (h *DeleteStageHandler) Handle(ctx context.Context, cmd DeleteStageCommand) (*DeleteStageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("stage", "Delete", shared.ErrValidation, "invalid command", err)
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

	now := timeutil.Now()
	if err := h.stageRepo.SoftDelete(ctx, s.ID, now); err != nil {
		return nil, err
	}

	h.cache.InvalidateMany(ctx,
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixStage, EntityID: s.ID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixPlan, EntityID: s.PlanID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: p.UserID},
	)

	if err := h.eventPublisher.Publish(shared.NewStageDeletedEvent(
		s.ID, s.PlanID, p.UserID)); err != nil {
		h.logger.Error("failed to publish stage deleted event",
			"stage_id", s.ID, "error", err)
	}

	return &DeleteStageResult{
		StageID:   s.ID,
		PlanID:    s.PlanID,
		DeletedAt: now,
	}, nil
}
