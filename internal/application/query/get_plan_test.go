package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
)

func newTestPlan(t *testing.T, id, userID string) *plan.Plan {
	t.Helper()
	now := time.Now().UTC()
	p, err := plan.New(id, userID, "", "health",
		now.Add(time.Hour), now.Add(30*24*time.Hour), true, now)
	require.NoError(t, err)
	return p
}

func newTestStage(t *testing.T, id, planID string, order int) *stage.Stage {
	t.Helper()
	s, err := stage.New(id, planID, "Cut down", order, nil, nil, time.Now().UTC())
	require.NoError(t, err)
	return s
}

func TestGetPlan_MissLoadsAndCaches(t *testing.T) {
	repo := newStubPlanRepo()
	stageRepo := &stubStageRepo{}
	cache := newFakeCache()
	h := NewGetPlanHandler(repo, stageRepo, cache, nil)

	p := newTestPlan(t, "p1", "u1")
	repo.plans["p1"] = p
	stageRepo.stages = []*stage.Stage{newTestStage(t, "s1", "p1", 1)}

	result, err := h.Handle(context.Background(), GetPlanQuery{PlanID: "p1", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "p1", result.Plan.ID)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, 1, repo.getCalls)

	key := rediscache.OneKey(rediscache.PrefixPlan, "p1")
	_, cached := cache.entries[key]
	assert.True(t, cached, "miss must populate the cache")
}

func TestGetPlan_HitSkipsRepository(t *testing.T) {
	repo := newStubPlanRepo()
	stageRepo := &stubStageRepo{}
	cache := newFakeCache()
	h := NewGetPlanHandler(repo, stageRepo, cache, nil)

	p := newTestPlan(t, "p1", "u1")
	repo.plans["p1"] = p
	ctx := context.Background()

	_, err := h.Handle(ctx, GetPlanQuery{PlanID: "p1", UserID: "u1"})
	require.NoError(t, err)

	_, err = h.Handle(ctx, GetPlanQuery{PlanID: "p1", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.getCalls, "second read must be served from cache")
	assert.Equal(t, 1, stageRepo.listCalls)
}

func TestGetPlan_OwnershipEnforcedOnCacheHit(t *testing.T) {
	repo := newStubPlanRepo()
	cache := newFakeCache()
	h := NewGetPlanHandler(repo, &stubStageRepo{}, cache, nil)

	repo.plans["p1"] = newTestPlan(t, "p1", "u1")
	ctx := context.Background()

	_, err := h.Handle(ctx, GetPlanQuery{PlanID: "p1", UserID: "u1"})
	require.NoError(t, err)

	// The entry is cached now; a foreign caller still gets rejected.
	_, err = h.Handle(ctx, GetPlanQuery{PlanID: "p1", UserID: "intruder"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGetPlan_NotFound(t *testing.T) {
	h := NewGetPlanHandler(newStubPlanRepo(), &stubStageRepo{}, newFakeCache(), nil)

	_, err := h.Handle(context.Background(), GetPlanQuery{PlanID: "missing", UserID: "u1"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetPlan_ValidatesQuery(t *testing.T) {
	h := NewGetPlanHandler(newStubPlanRepo(), &stubStageRepo{}, newFakeCache(), nil)

	_, err := h.Handle(context.Background(), GetPlanQuery{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
