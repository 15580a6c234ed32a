package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
)

// fakePlanRepo is an in-memory plan.Repository.
type fakePlanRepo struct {
	mu    sync.Mutex
	plans map[string]*plan.Plan

	createErr error
	updateErr error
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[string]*plan.Plan)}
}

func (r *fakePlanRepo) Create(_ context.Context, p *plan.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *fakePlanRepo) GetByID(_ context.Context, id string) (*plan.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, shared.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePlanRepo) Update(_ context.Context, p *plan.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.plans[p.ID]; !ok {
		return shared.ErrPlanNotFound
	}
	cp := *p
	r.plans[p.ID] = &cp
	return nil
}

func (r *fakePlanRepo) List(_ context.Context, filter plan.Filter) ([]*plan.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*plan.Plan
	for _, p := range r.plans {
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakePlanRepo) CountByUser(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.plans {
		if p.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakePlanRepo) CountByStatusForUser(_ context.Context, userID string) (plan.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(plan.StatusCounts)
	for _, p := range r.plans {
		if p.UserID == userID {
			counts[p.Status]++
		}
	}
	return counts, nil
}

func (r *fakePlanRepo) HasOpenPlan(_ context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.UserID == userID && p.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePlanRepo) ActivateDue(_ context.Context, now time.Time) ([]*plan.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*plan.Plan
	for _, p := range r.plans {
		if p.Status == plan.StatusPlanning && !p.StartDate.After(now) {
			p.Status = plan.StatusActive
			p.UpdatedAt = now
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeStageRepo is an in-memory stage.Repository.
type fakeStageRepo struct {
	mu     sync.Mutex
	stages map[string]*stage.Stage

	reorderErr error
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{stages: make(map[string]*stage.Stage)}
}

func (r *fakeStageRepo) Create(_ context.Context, s *stage.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.stages[s.ID] = &cp
	return nil
}

func (r *fakeStageRepo) GetByID(_ context.Context, id string) (*stage.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stages[id]
	if !ok || s.Deleted {
		return nil, shared.ErrStageNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStageRepo) Update(_ context.Context, s *stage.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stages[s.ID]; !ok {
		return shared.ErrStageNotFound
	}
	cp := *s
	r.stages[s.ID] = &cp
	return nil
}

func (r *fakeStageRepo) ListByPlan(_ context.Context, planID string) ([]*stage.Stage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stage.Stage
	for _, s := range r.stages {
		if s.PlanID == planID && !s.Deleted {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeStageRepo) CountCompletedByPlan(_ context.Context, planID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.stages {
		if s.PlanID == planID && !s.Deleted && s.Status == stage.StatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeStageRepo) Reorder(_ context.Context, planID string, assignments []stage.OrderAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reorderErr != nil {
		return r.reorderErr
	}
	for _, a := range assignments {
		s, ok := r.stages[a.StageID]
		if !ok || s.PlanID != planID {
			return shared.ErrStageNotFound
		}
		s.Order = a.Order
	}
	// Orders are unique among live stages only, matching the partial
	// index the real schema enforces.
	seen := make(map[int]bool)
	for _, s := range r.stages {
		if s.PlanID != planID || s.Deleted {
			continue
		}
		if seen[s.Order] {
			return shared.ErrStageOrderConflict
		}
		seen[s.Order] = true
	}
	return nil
}

func (r *fakeStageRepo) SoftDelete(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stages[id]
	if !ok || s.Deleted {
		return shared.ErrStageNotFound
	}
	s.Deleted = true
	s.UpdatedAt = now
	return nil
}

func (r *fakeStageRepo) ActivateDue(_ context.Context, now time.Time) ([]stage.ActivatedStage, error) {
	return nil, nil
}

// fakeInvalidator records invalidation targets.
type fakeInvalidator struct {
	mu      sync.Mutex
	targets []rediscache.InvalidationTarget
}

func (f *fakeInvalidator) InvalidateMany(_ context.Context, targets ...rediscache.InvalidationTarget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, targets...)
}

func (f *fakeInvalidator) invalidated(prefix, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.targets {
		if t.Prefix == prefix && t.EntityID == id {
			return true
		}
	}
	return false
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event

	publishErr error
}

func (f *fakePublisher) Publish(event shared.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) byType(t shared.EventType) []shared.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []shared.Event
	for _, e := range f.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
