package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY CONSTRUCTION
// ══════════════════════════════════════════════════════════════════════════════

// Entity prefixes for namespacing cache keys.
const (
	PrefixPlan  = "plan"
	PrefixStage = "stage"
	PrefixBadge = "badge"
	PrefixUser  = "user"
	PrefixStats = "stats"
)

const keySeparator = ":"

// allSuffix names the conventional list-cache key for a prefix. It is
// deleted on every invalidation for that prefix alongside the tracked keys.
const allSuffix = "all"

// Key builds a deterministic cache key by joining the prefix and the
// stringified parts. Map/struct parts are serialized as canonical JSON
// (json.Marshal sorts map keys), so identical logical queries always
// produce the same key regardless of how the filter was assembled.
func Key(prefix string, parts ...interface{}) string {
	b := strings.Builder{}
	b.WriteString(prefix)

	for _, part := range parts {
		b.WriteString(keySeparator)
		switch v := part.(type) {
		case string:
			b.WriteString(v)
		case fmt.Stringer:
			b.WriteString(v.String())
		case int, int32, int64, uint, uint32, uint64, bool:
			fmt.Fprintf(&b, "%v", v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				// A key that cannot be serialized still has to be
				// deterministic for this call site.
				fmt.Fprintf(&b, "%v", v)
				continue
			}
			b.Write(data)
		}
	}

	return b.String()
}

// OneKey builds the key for a single-entity cache entry.
func OneKey(prefix, id string) string {
	return Key(prefix, "one", id)
}

// ListKey builds the conventional list-cache key for a prefix.
func ListKey(prefix string) string {
	return Key(prefix, allSuffix)
}

// TrackerKey builds the key of the reverse index for an entity: the set of
// cache keys that must be dropped when the entity changes.
func TrackerKey(prefix, entityID string) string {
	return Key(prefix, "tracker", entityID)
}

// ══════════════════════════════════════════════════════════════════════════════
// COHERENCE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the minimal cache contract the coherence layer needs: string
// get/set with TTL, atomic set-add/members with expiry, and batch delete.
// *Cache satisfies it; tests use an in-memory fake.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Coherence keeps derived read views consistent with write-path mutations.
//
// List and aggregate queries cannot be invalidated by a single deterministic
// key because their keys encode arbitrary filter and pagination parameters.
// Instead, every such query registers its own key against every entity ID
// whose change should invalidate it (Track). Invalidation then deletes
// everything ever registered for the entity - O(registered keys), no
// wildcard scan.
//
// Every method is best-effort: cache failures are logged and degrade to a
// miss (reads) or a no-op (writes). They never fail the calling operation.
type Coherence struct {
	store  Store
	logger *slog.Logger
}

// NewCoherence creates a coherence layer over the given store.
func NewCoherence(store Store, logger *slog.Logger) *Coherence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coherence{store: store, logger: logger}
}

// GetCached loads a cached value. Returns false on miss or any cache error.
func (c *Coherence) GetCached(ctx context.Context, key string, dest interface{}) bool {
	err := c.store.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
	}
	return false
}

// SetCached stores a value. Failures are logged and swallowed.
func (c *Coherence) SetCached(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Track registers cacheKey in the tracker set of every (prefix, entityID)
// pair, so a later change to any of those entities invalidates it.
// Adding is idempotent; concurrent trackers from several instances converge
// to a correct, possibly slightly larger than minimal, set.
func (c *Coherence) Track(ctx context.Context, cacheKey string, prefix string, entityIDs ...string) {
	for _, id := range entityIDs {
		tracker := TrackerKey(prefix, id)
		if err := c.store.SAdd(ctx, tracker, cacheKey); err != nil {
			c.logger.Warn("cache tracking failed", "tracker", tracker, "key", cacheKey, "error", err)
			continue
		}
		// The tracker must outlive every entry it indexes, otherwise an
		// invalidation could miss a still-cached list. Each add refreshes
		// the window.
		if err := c.store.Expire(ctx, tracker, TTLTracker); err != nil {
			c.logger.Warn("cache tracker expiry failed", "tracker", tracker, "error", err)
		}
	}
}

// Invalidate drops every cache entry known to depend on the entity: all
// members of its tracker set, the entity's own one-key, the conventional
// list key for the prefix, and the tracker itself, in a single batch delete.
func (c *Coherence) Invalidate(ctx context.Context, prefix, entityID string) {
	tracker := TrackerKey(prefix, entityID)

	members, err := c.store.SMembers(ctx, tracker)
	if err != nil {
		c.logger.Warn("cache tracker read failed", "tracker", tracker, "error", err)
		// Still drop the deterministic keys below.
	}

	keys := make([]string, 0, len(members)+3)
	keys = append(keys, members...)
	keys = append(keys, OneKey(prefix, entityID), ListKey(prefix), tracker)

	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", "tracker", tracker, "keys", len(keys), "error", err)
	}
}

// InvalidateMany fans invalidation out over several (prefix, id) pairs.
// Used by commands and sweeps that touch an entity, its plan, and its user.
func (c *Coherence) InvalidateMany(ctx context.Context, pairs ...InvalidationTarget) {
	for _, p := range pairs {
		c.Invalidate(ctx, p.Prefix, p.EntityID)
	}
}

// InvalidationTarget names one (prefix, entity id) pair to invalidate.
type InvalidationTarget struct {
	Prefix   string
	EntityID string
}
