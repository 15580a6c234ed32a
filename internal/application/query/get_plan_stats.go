package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAN STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetPlanStatsQuery requests per-status plan counts for a user.
type GetPlanStatsQuery struct {
	// UserID is the user whose stats are aggregated.
	UserID string
}

// Validate validates the query.
func (q GetPlanStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_plan_stats: user_id is required")
	}
	return nil
}

// GetPlanStatsResult aggregates the user's plans.
type GetPlanStatsResult struct {
	// Total is the number of plans the user ever created.
	Total int `json:"total"`

	// ByStatus counts plans per status.
	ByStatus plan.StatusCounts `json:"by_status"`

	// Completed is a convenience view of ByStatus[COMPLETED].
	Completed int `json:"completed"`
}

// GetPlanStatsHandler handles the GetPlanStatsQuery.
type GetPlanStatsHandler struct {
	planRepo plan.Repository
	cache    Cache
	logger   *slog.Logger
}

// NewGetPlanStatsHandler creates a new handler.
func NewGetPlanStatsHandler(planRepo plan.Repository, cache Cache, logger *slog.Logger) *GetPlanStatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetPlanStatsHandler{
		planRepo: planRepo,
		cache:    cache,
		logger:   logger,
	}
}

// Handle executes the query.
//
// Stats are keyed deterministically by user, so invalidating the stats
// prefix for the user drops the entry without any tracker indirection.
func (h *GetPlanStatsHandler) Handle(ctx context.Context, q GetPlanStatsQuery) (*GetPlanStatsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("plan", "Stats", shared.ErrValidation, "invalid query", err)
	}

	key := rediscache.OneKey(rediscache.PrefixStats, q.UserID)

	var result GetPlanStatsResult
	if h.cache.GetCached(ctx, key, &result) {
		return &result, nil
	}

	counts, err := h.planRepo.CountByStatusForUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	result = GetPlanStatsResult{
		Total:     total,
		ByStatus:  counts,
		Completed: counts[plan.StatusCompleted],
	}

	h.cache.SetCached(ctx, key, result, rediscache.TTLList)

	return &result, nil
}
