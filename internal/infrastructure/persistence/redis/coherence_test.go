package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for exercising the coherence layer
// without a Redis server.
type fakeStore struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   map[string]map[string]bool
	ttls   map[string]time.Duration

	failGet    bool
	failSet    bool
	failSAdd   bool
	failExpire bool
	failDelete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]bool),
		ttls:   make(map[string]time.Duration),
	}
}

var errFake = errors.New("fake store failure")

func (f *fakeStore) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return errFake
	}
	data, ok := f.values[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errFake
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = data
	return nil
}

func (f *fakeStore) SAdd(_ context.Context, key string, members ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSAdd {
		return errFake
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]bool)
		f.sets[key] = set
	}
	for _, m := range members {
		set[m.(string)] = true
	}
	return nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, errFake
	}
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failExpire {
		return errFake
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errFake
	}
	for _, k := range keys {
		delete(f.values, k)
		delete(f.sets, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeStore) ttl(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, "plan:one:p1", OneKey(PrefixPlan, "p1"))
	assert.Equal(t, "plan:tracker:p1", TrackerKey(PrefixPlan, "p1"))
	assert.Equal(t, "plan:all", ListKey(PrefixPlan))
	assert.Equal(t, "plan:list:u1:20:0", Key(PrefixPlan, "list", "u1", 20, 0))
}

func TestKey_CanonicalObjectSerialization(t *testing.T) {
	// Identical logical filters must produce identical keys regardless of
	// map insertion order (json.Marshal sorts map keys).
	a := Key(PrefixPlan, "list", map[string]interface{}{"user": "u1", "status": "ACTIVE"})
	b := Key(PrefixPlan, "list", map[string]interface{}{"status": "ACTIVE", "user": "u1"})
	assert.Equal(t, a, b)

	c := Key(PrefixPlan, "list", map[string]interface{}{"status": "PAUSED", "user": "u1"})
	assert.NotEqual(t, a, c)
}

func TestCoherence_TrackAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	coh := NewCoherence(store, nil)

	listKey := Key(PrefixPlan, "list", "u1", 20, 0)
	coh.SetCached(ctx, listKey, []string{"p1", "p2"}, time.Minute)
	coh.Track(ctx, listKey, PrefixPlan, "p1", "p2")
	coh.Track(ctx, listKey, PrefixUser, "u1")

	var cached []string
	require.True(t, coh.GetCached(ctx, listKey, &cached))

	// Invalidating one tracked entity drops the list entry and its tracker.
	coh.Invalidate(ctx, PrefixPlan, "p1")
	assert.False(t, coh.GetCached(ctx, listKey, &cached), "tracked key must be a miss after invalidation")
	members, err := store.SMembers(ctx, TrackerKey(PrefixPlan, "p1"))
	require.NoError(t, err)
	assert.Empty(t, members, "tracker set itself must be deleted")

	// The other trackers still reference the now-deleted key; invalidating
	// through them is harmless.
	coh.Invalidate(ctx, PrefixUser, "u1")
	assert.False(t, coh.GetCached(ctx, listKey, &cached))
}

func TestCoherence_TrackIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	coh := NewCoherence(store, nil)

	coh.Track(ctx, "plan:list:x", PrefixPlan, "p1")
	coh.Track(ctx, "plan:list:x", PrefixPlan, "p1")

	members, err := store.SMembers(ctx, TrackerKey(PrefixPlan, "p1"))
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestCoherence_TrackSetsTrackerExpiry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	coh := NewCoherence(store, nil)

	coh.Track(ctx, "plan:list:x", PrefixPlan, "p1", "p2")

	// The tracker window must exceed every entry TTL it can index.
	assert.Equal(t, TTLTracker, store.ttl(TrackerKey(PrefixPlan, "p1")))
	assert.Equal(t, TTLTracker, store.ttl(TrackerKey(PrefixPlan, "p2")))
	assert.Greater(t, TTLTracker, TTLEntity)
	assert.Greater(t, TTLTracker, TTLList)
}

func TestCoherence_TrackExpiryFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failExpire = true
	coh := NewCoherence(store, nil)

	assert.NotPanics(t, func() {
		coh.Track(ctx, "plan:list:x", PrefixPlan, "p1")
	})

	// The registration itself must survive a failed expiry.
	members, err := store.SMembers(ctx, TrackerKey(PrefixPlan, "p1"))
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestCoherence_InvalidateDropsOneKeyAndListKey(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	coh := NewCoherence(store, nil)

	coh.SetCached(ctx, OneKey(PrefixPlan, "p1"), "entity", time.Minute)
	coh.SetCached(ctx, ListKey(PrefixPlan), "list", time.Minute)

	coh.Invalidate(ctx, PrefixPlan, "p1")

	var s string
	assert.False(t, coh.GetCached(ctx, OneKey(PrefixPlan, "p1"), &s))
	assert.False(t, coh.GetCached(ctx, ListKey(PrefixPlan), &s))
}

func TestCoherence_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	coh := NewCoherence(store, nil)

	store.failSet = true
	store.failSAdd = true
	store.failDelete = true
	store.failGet = true

	var s string
	assert.NotPanics(t, func() {
		coh.SetCached(ctx, "k", "v", time.Minute)
		coh.Track(ctx, "k", PrefixPlan, "p1")
		coh.Invalidate(ctx, PrefixPlan, "p1")
		assert.False(t, coh.GetCached(ctx, "k", &s), "cache read failure degrades to a miss")
	})
}

func TestCoherence_InvalidateMany(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	coh := NewCoherence(store, nil)

	coh.SetCached(ctx, OneKey(PrefixPlan, "p1"), "a", time.Minute)
	coh.SetCached(ctx, OneKey(PrefixUser, "u1"), "b", time.Minute)

	coh.InvalidateMany(ctx,
		InvalidationTarget{Prefix: PrefixPlan, EntityID: "p1"},
		InvalidationTarget{Prefix: PrefixUser, EntityID: "u1"},
	)

	var s string
	assert.False(t, coh.GetCached(ctx, OneKey(PrefixPlan, "p1"), &s))
	assert.False(t, coh.GetCached(ctx, OneKey(PrefixUser, "u1"), &s))
}
