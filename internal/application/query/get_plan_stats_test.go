package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
)

func TestGetPlanStats_Aggregates(t *testing.T) {
	repo := newStubPlanRepo()
	cache := newFakeCache()
	h := NewGetPlanStatsHandler(repo, cache, nil)

	repo.counts = plan.StatusCounts{
		plan.StatusActive:    1,
		plan.StatusCompleted: 2,
		plan.StatusCancelled: 1,
	}

	result, err := h.Handle(context.Background(), GetPlanStatsQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 1, result.ByStatus[plan.StatusActive])
}

func TestGetPlanStats_CachedUnderDeterministicKey(t *testing.T) {
	repo := newStubPlanRepo()
	cache := newFakeCache()
	h := NewGetPlanStatsHandler(repo, cache, nil)
	ctx := context.Background()

	repo.counts = plan.StatusCounts{plan.StatusActive: 1}

	_, err := h.Handle(ctx, GetPlanStatsQuery{UserID: "u1"})
	require.NoError(t, err)

	key := rediscache.OneKey(rediscache.PrefixStats, "u1")
	_, cached := cache.entries[key]
	assert.True(t, cached, "stats live under the deterministic per-user key")

	_, err = h.Handle(ctx, GetPlanStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.countCalls)

	// The deterministic key needs no tracker registration.
	assert.Empty(t, cache.tracked)
}

func TestGetPlanStats_ValidatesQuery(t *testing.T) {
	h := NewGetPlanStatsHandler(newStubPlanRepo(), newFakeCache(), nil)

	_, err := h.Handle(context.Background(), GetPlanStatsQuery{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
