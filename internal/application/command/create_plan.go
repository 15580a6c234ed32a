// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
	"github.com/exhale-hub/exhale-backend/pkg/timeutil"
)

// CacheInvalidator is the slice of the cache coherence layer commands need.
type CacheInvalidator interface {
	InvalidateMany(ctx context.Context, targets ...rediscache.InvalidationTarget)
}

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PLAN COMMAND
// Creates a new cessation plan for a user. A user can hold at most one open
// plan at a time; the previous plan must reach a terminal state first.
// ══════════════════════════════════════════════════════════════════════════════

// CreatePlanCommand contains the data to create a cessation plan.
type CreatePlanCommand struct {
	// UserID is the owner of the plan.
	UserID string

	// TemplateID references the plan template, empty for custom plans.
	TemplateID string

	// Reason is the user's motivation for quitting.
	Reason string

	// StartDate is when the plan begins. May be backdated up to 24 hours.
	StartDate time.Time

	// TargetDate is the quit target. Must be after StartDate.
	TargetDate time.Time

	// IsCustom marks a hand-built plan whose stages the user may edit.
	IsCustom bool
}

// Validate validates the command.
func (c CreatePlanCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("create_plan: user_id is required")
	}
	if c.StartDate.IsZero() {
		return errors.New("create_plan: start_date is required")
	}
	if c.TargetDate.IsZero() {
		return errors.New("create_plan: target_date is required")
	}
	return nil
}

// CreatePlanResult contains the result of creating a plan.
type CreatePlanResult struct {
	// Plan is the created plan.
	Plan *plan.Plan

	// IsFirstPlan is true when this is the user's first plan ever.
	IsFirstPlan bool

	// CreatedAt is when the plan was created.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreatePlanHandler handles the CreatePlanCommand.
type CreatePlanHandler struct {
	planRepo       plan.Repository
	cache          CacheInvalidator
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewCreatePlanHandler creates a new handler.
func NewCreatePlanHandler(
	planRepo plan.Repository,
	cache CacheInvalidator,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *CreatePlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreatePlanHandler{
		planRepo:       planRepo,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the command.
func (h *CreatePlanHandler) Handle(ctx context.Context, cmd CreatePlanCommand) (*CreatePlanResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("plan", "Create", shared.ErrValidation, "invalid command", err)
	}

	hasOpen, err := h.planRepo.HasOpenPlan(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if hasOpen {
		return nil, shared.ErrPlanAlreadyOpen
	}

	// Counted before the insert, so zero means first plan ever.
	existing, err := h.planRepo.CountByUser(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	isFirst := existing == 0

	now := timeutil.Now()
	p, err := plan.New(
		uuid.NewString(), cmd.UserID, cmd.TemplateID, cmd.Reason,
		cmd.StartDate, cmd.TargetDate, cmd.IsCustom, now,
	)
	if err != nil {
		return nil, err
	}

	// The partial unique index on open plans backs up the HasOpenPlan
	// check against concurrent creates; Create maps the violation to
	// ErrPlanAlreadyOpen.
	if err := h.planRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	h.cache.InvalidateMany(ctx,
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixUser, EntityID: p.UserID},
		rediscache.InvalidationTarget{Prefix: rediscache.PrefixStats, EntityID: p.UserID},
	)

	// Event delivery is best-effort; the plan is already persisted.
	if err := h.eventPublisher.Publish(shared.NewPlanCreatedEvent(p.ID, p.UserID, isFirst)); err != nil {
		h.logger.Error("failed to publish plan created event", "plan_id", p.ID, "error", err)
	}

	return &CreatePlanResult{
		Plan:        p,
		IsFirstPlan: isFirst,
		CreatedAt:   now,
	}, nil
}
