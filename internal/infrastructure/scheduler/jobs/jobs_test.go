package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhale-hub/exhale-backend/internal/domain/notification"
	"github.com/exhale-hub/exhale-backend/internal/domain/plan"
	"github.com/exhale-hub/exhale-backend/internal/domain/shared"
	"github.com/exhale-hub/exhale-backend/internal/domain/stage"
	rediscache "github.com/exhale-hub/exhale-backend/internal/infrastructure/persistence/redis"
)

type fakePlanRepo struct {
	plan.Repository

	due         []*plan.Plan
	activateErr error
}

func (r *fakePlanRepo) ActivateDue(_ context.Context, _ time.Time) ([]*plan.Plan, error) {
	if r.activateErr != nil {
		return nil, r.activateErr
	}
	// A real sweep drains the due set; promoted rows stop matching.
	due := r.due
	r.due = nil
	return due, nil
}

type fakeStageRepo struct {
	stage.Repository

	due []stage.ActivatedStage
}

func (r *fakeStageRepo) ActivateDue(_ context.Context, _ time.Time) ([]stage.ActivatedStage, error) {
	due := r.due
	r.due = nil
	return due, nil
}

type fakeInvalidator struct {
	mu      sync.Mutex
	targets []rediscache.InvalidationTarget
}

func (f *fakeInvalidator) InvalidateMany(_ context.Context, targets ...rediscache.InvalidationTarget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, targets...)
}

func (f *fakeInvalidator) invalidated(prefix, entityID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tgt := range f.targets {
		if tgt.Prefix == prefix && tgt.EntityID == entityID {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (f *fakePublisher) Publish(event shared.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (f *fakeNotifier) SendNotification(_ context.Context, n notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func duePlan(t *testing.T, id, userID string) *plan.Plan {
	t.Helper()
	now := time.Now().UTC()
	p, err := plan.New(id, userID, "", "health",
		now.Add(-time.Hour), now.Add(30*24*time.Hour), true, now.Add(-2*time.Hour))
	require.NoError(t, err)
	return p
}

func dueStage(t *testing.T, id, planID, userID string) stage.ActivatedStage {
	t.Helper()
	s, err := stage.New(id, planID, "Cut down", 1, nil, nil, time.Now().UTC())
	require.NoError(t, err)
	s.Status = stage.StatusActive
	return stage.ActivatedStage{Stage: s, UserID: userID}
}

func TestActivateDuePlans_PromotesAndFansOut(t *testing.T) {
	repo := &fakePlanRepo{due: []*plan.Plan{
		duePlan(t, "p1", "u1"),
		duePlan(t, "p2", "u2"),
	}}
	inv := &fakeInvalidator{}
	pub := &fakePublisher{}
	notifier := &fakeNotifier{}
	job := NewActivateDuePlansJob(repo, inv, pub, notifier, nil)

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Promoted)
	assert.Zero(t, stats.Errors)

	assert.Len(t, pub.byType(shared.EventPlanStatusChanged), 2)
	require.Len(t, pub.byType(shared.EventSweepCompleted), 1)

	assert.True(t, inv.invalidated(rediscache.PrefixPlan, "p1"))
	assert.True(t, inv.invalidated(rediscache.PrefixUser, "u2"))
	assert.True(t, inv.invalidated(rediscache.PrefixStats, "u1"))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, notification.TypePlanActivated, notifier.sent[0].Type)
}

func TestActivateDuePlans_EmptyRunIsQuiet(t *testing.T) {
	pub := &fakePublisher{}
	job := NewActivateDuePlansJob(&fakePlanRepo{}, &fakeInvalidator{}, pub, nil, nil)

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, pub.events, "an empty sweep publishes nothing")
	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Zero(t, stats.Promoted)
}

func TestActivateDuePlans_SecondRunFindsNothing(t *testing.T) {
	repo := &fakePlanRepo{due: []*plan.Plan{duePlan(t, "p1", "u1")}}
	pub := &fakePublisher{}
	job := NewActivateDuePlansJob(repo, &fakeInvalidator{}, pub, nil, nil)
	ctx := context.Background()

	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	assert.Len(t, pub.byType(shared.EventPlanStatusChanged), 1,
		"promoted plans fall out of the sweep filter")
	assert.Zero(t, job.LastRunStats().Promoted)
}

func TestActivateDuePlans_RepositoryErrorSurfaces(t *testing.T) {
	repo := &fakePlanRepo{activateErr: errors.New("connection reset")}
	job := NewActivateDuePlansJob(repo, &fakeInvalidator{}, &fakePublisher{}, nil, nil)

	err := job.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, job.LastRunStats(), "a failed sweep records no stats")
}

func TestActivateDueStages_PromotesAndFansOut(t *testing.T) {
	repo := &fakeStageRepo{due: []stage.ActivatedStage{
		dueStage(t, "s1", "p1", "u1"),
	}}
	inv := &fakeInvalidator{}
	pub := &fakePublisher{}
	job := NewActivateDueStagesJob(repo, inv, pub, nil)

	require.NoError(t, job.Run(context.Background()))

	events := pub.byType(shared.EventStageStatusChanged)
	require.Len(t, events, 1)
	changed := events[0].(shared.StageStatusChangedEvent)
	assert.Equal(t, "s1", changed.StageID)
	assert.Equal(t, string(stage.StatusActive), changed.NewStatus)

	require.Len(t, pub.byType(shared.EventSweepCompleted), 1)

	assert.True(t, inv.invalidated(rediscache.PrefixStage, "s1"))
	assert.True(t, inv.invalidated(rediscache.PrefixPlan, "p1"))
	assert.True(t, inv.invalidated(rediscache.PrefixUser, "u1"))
}

func TestActivateDueStages_EmptyRunIsQuiet(t *testing.T) {
	pub := &fakePublisher{}
	job := NewActivateDueStagesJob(&fakeStageRepo{}, &fakeInvalidator{}, pub, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, pub.events)
}
