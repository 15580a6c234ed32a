// Package query contains read operations (CQRS - Queries). Reads go through
// the cache coherence layer: a hit skips the database entirely, a miss
// loads, caches, and registers the key for invalidation.
package query

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

// Cache is the slice of the cache coherence layer queries need.
type Cache interface {
	GetCached(ctx context.Context, key string, dest interface{}) bool
	SetCached(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Track(ctx context.Context, cacheKey string, prefix string, entityIDs ...string)
}

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAN QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetPlanQuery requests a single plan with its stages and derived progress.
type GetPlanQuery struct {
	// PlanID identifies the plan.
	PlanID string

	// UserID is the caller; must own the plan.
	UserID string
}

// Validate validates the query.
func (q GetPlanQuery) Validate() error {
	if q.PlanID == "" {
		return errors.New("get_plan: plan_id is required")
	}
	if q.UserID == "" {
		return errors.New("get_plan: user_id is required")
	}
	return nil
}

// GetPlanResult is the enriched read model for a plan.
type GetPlanResult struct {
	Plan     *plan.Plan     `json:"plan"`
	Stages   []*stage.Stage `json:"stages"`
	Progress plan.Progress  `json:"progress"`
}

// GetPlanHandler handles the GetPlanQuery.
type GetPlanHandler struct {
	planRepo  plan.Repository
	stageRepo stage.Repository
	cache     Cache
	logger    *slog.Logger
}

// NewGetPlanHandler creates a new handler.
func NewGetPlanHandler(
	planRepo plan.Repository,
	stageRepo stage.Repository,
	cache Cache,
	logger *slog.Logger,
) *GetPlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetPlanHandler{
		planRepo:  planRepo,
		stageRepo: stageRepo,
		cache:     cache,
		logger:    logger,
	}
}

// cachedPlanView is the cacheable part of the result. Progress is derived
// from the clock, so it is recomputed on every read rather than cached.
type cachedPlanView struct {
	Plan   *plan.Plan     `json:"plan"`
	Stages []*stage.Stage `json:"stages"`
}

// Handle executes the query.
func (h *GetPlanHandler) Handle(ctx context.Context, q GetPlanQuery) (*GetPlanResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("plan", "Get", shared.ErrValidation, "invalid query", err)
	}

	key := rediscache.OneKey(rediscache.PrefixPlan, q.PlanID)

	var view cachedPlanView
	if !h.cache.GetCached(ctx, key, &view) {
		p, err := h.planRepo.GetByID(ctx, q.PlanID)
		if err != nil {
			return nil, err
		}
		stages, err := h.stageRepo.ListByPlan(ctx, q.PlanID)
		if err != nil {
			return nil, err
		}

		view = cachedPlanView{Plan: p, Stages: stages}
		h.cache.SetCached(ctx, key, view, rediscache.TTLEntity)
	}

	if !view.Plan.OwnedBy(q.UserID) {
		return nil, shared.ErrPlanNotOwned
	}

	return &GetPlanResult{
		Plan:     view.Plan,
		Stages:   view.Stages,
		Progress: view.Plan.ComputeProgress(timeutil.Now()),
	}, nil
}
