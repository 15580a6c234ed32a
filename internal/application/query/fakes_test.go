package query

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
)

// fakeCache mimics the coherence layer with an in-memory map. Values round
// trip through JSON exactly like the real cache, so type mismatches between
// SetCached and GetCached show up in tests.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	tracked []trackCall
}

type trackCall struct {
	cacheKey  string
	prefix    string
	entityIDs []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) GetCached(_ context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (c *fakeCache) SetCached(_ context.Context, key string, value interface{}, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.entries[key] = data
}

func (c *fakeCache) Track(_ context.Context, cacheKey string, prefix string, entityIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracked = append(c.tracked, trackCall{cacheKey: cacheKey, prefix: prefix, entityIDs: entityIDs})
}

func (c *fakeCache) trackedAgainst(prefix, entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tc := range c.tracked {
		if tc.prefix != prefix {
			continue
		}
		for _, id := range tc.entityIDs {
			if id == entityID {
				return true
			}
		}
	}
	return false
}

// stubPlanRepo serves canned data and counts repository hits.
type stubPlanRepo struct {
	plan.Repository

	plans  map[string]*plan.Plan
	list   []*plan.Plan
	counts plan.StatusCounts

	getCalls   int
	listCalls  int
	countCalls int
}

func newStubPlanRepo() *stubPlanRepo {
	return &stubPlanRepo{plans: make(map[string]*plan.Plan)}
}

func (r *stubPlanRepo) GetByID(_ context.Context, id string) (*plan.Plan, error) {
	r.getCalls++
	p, ok := r.plans[id]
	if !ok {
		return nil, shared.ErrPlanNotFound
	}
	return p, nil
}

func (r *stubPlanRepo) List(_ context.Context, _ plan.Filter) ([]*plan.Plan, error) {
	r.listCalls++
	return r.list, nil
}

func (r *stubPlanRepo) CountByStatusForUser(_ context.Context, _ string) (plan.StatusCounts, error) {
	r.countCalls++
	return r.counts, nil
}

// stubStageRepo serves a canned stage list.
type stubStageRepo struct {
	stage.Repository

	stages    []*stage.Stage
	listCalls int
}

func (r *stubStageRepo) ListByPlan(_ context.Context, _ string) ([]*stage.Stage, error) {
	r.listCalls++
	return r.stages, nil
}
