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

func TestListPlans_MissTracksKeyAgainstResults(t *testing.T) {
	repo := newStubPlanRepo()
	cache := newFakeCache()
	h := NewListPlansHandler(repo, cache, nil)

	repo.list = []*plan.Plan{
		newTestPlan(t, "p1", "u1"),
		newTestPlan(t, "p2", "u1"),
	}

	result, err := h.Handle(context.Background(), ListPlansQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, result.Plans, 2)

	assert.True(t, cache.trackedAgainst(rediscache.PrefixPlan, "p1"))
	assert.True(t, cache.trackedAgainst(rediscache.PrefixPlan, "p2"))
	assert.True(t, cache.trackedAgainst(rediscache.PrefixUser, "u1"))
}

func TestListPlans_HitSkipsRepository(t *testing.T) {
	repo := newStubPlanRepo()
	cache := newFakeCache()
	h := NewListPlansHandler(repo, cache, nil)
	ctx := context.Background()

	repo.list = []*plan.Plan{newTestPlan(t, "p1", "u1")}

	_, err := h.Handle(ctx, ListPlansQuery{UserID: "u1"})
	require.NoError(t, err)

	result, err := h.Handle(ctx, ListPlansQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls, "identical query must be served from cache")
	require.Len(t, result.Plans, 1)
	assert.Equal(t, "p1", result.Plans[0].ID)
}

func TestListPlans_FilterVariantsGetDistinctKeys(t *testing.T) {
	repo := newStubPlanRepo()
	cache := newFakeCache()
	h := NewListPlansHandler(repo, cache, nil)
	ctx := context.Background()

	repo.list = []*plan.Plan{newTestPlan(t, "p1", "u1")}

	_, err := h.Handle(ctx, ListPlansQuery{UserID: "u1"})
	require.NoError(t, err)

	_, err = h.Handle(ctx, ListPlansQuery{UserID: "u1", Statuses: []plan.Status{plan.StatusActive}})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.listCalls, "a narrower filter is a different cache entry")
}

func TestListPlans_RejectsUnknownStatus(t *testing.T) {
	h := NewListPlansHandler(newStubPlanRepo(), newFakeCache(), nil)

	_, err := h.Handle(context.Background(), ListPlansQuery{
		UserID:   "u1",
		Statuses: []plan.Status{plan.Status("LIMBO")},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
