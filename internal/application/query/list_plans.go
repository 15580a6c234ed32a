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
// LIST PLANS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// defaultListLimit caps unbounded list queries.
const defaultListLimit = 20

// ListPlansQuery requests a filtered, paginated plan list for a user.
type ListPlansQuery struct {
	// UserID is the owner whose plans are listed.
	UserID string

	// Statuses narrows the list to the given statuses; empty means all.
	Statuses []plan.Status

	// Limit caps the page size (default 20).
	Limit int

	// Offset skips the first N results.
	Offset int
}

// Validate validates the query.
func (q ListPlansQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("list_plans: user_id is required")
	}
	for _, s := range q.Statuses {
		if !s.IsValid() {
			return errors.New("list_plans: unknown status filter")
		}
	}
	return nil
}

// ListPlansResult contains the listed plans.
type ListPlansResult struct {
	Plans []*plan.Plan `json:"plans"`
}

// ListPlansHandler handles the ListPlansQuery.
type ListPlansHandler struct {
	planRepo plan.Repository
	cache    Cache
	logger   *slog.Logger
}

// NewListPlansHandler creates a new handler.
func NewListPlansHandler(planRepo plan.Repository, cache Cache, logger *slog.Logger) *ListPlansHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListPlansHandler{
		planRepo: planRepo,
		cache:    cache,
		logger:   logger,
	}
}

// Handle executes the query.
//
// The cache key embeds the full filter as canonical JSON, so logically
// identical queries share an entry. On a miss the fresh key is registered
// against every returned plan and the owning user; any later change to one
// of them drops this entry.
func (h *ListPlansHandler) Handle(ctx context.Context, q ListPlansQuery) (*ListPlansResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("plan", "List", shared.ErrValidation, "invalid query", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := plan.Filter{
		UserID:   q.UserID,
		Statuses: q.Statuses,
		Limit:    limit,
		Offset:   q.Offset,
	}

	key := rediscache.Key(rediscache.PrefixPlan, "list", filter)

	var plans []*plan.Plan
	if h.cache.GetCached(ctx, key, &plans) {
		return &ListPlansResult{Plans: plans}, nil
	}

	plans, err := h.planRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	h.cache.SetCached(ctx, key, plans, rediscache.TTLList)

	planIDs := make([]string, 0, len(plans))
	for _, p := range plans {
		planIDs = append(planIDs, p.ID)
	}
	h.cache.Track(ctx, key, rediscache.PrefixPlan, planIDs...)
	h.cache.Track(ctx, key, rediscache.PrefixUser, q.UserID)

	return &ListPlansResult{Plans: plans}, nil
}
