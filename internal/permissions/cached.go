package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/charlesng35/menuguard/internal/cache"
)

const defaultCacheTTL = 5 * time.Minute

// CachedResolver memoises capability maps in a cache.Store. Only successful resolutions
// are stored. Cache failures fall back to the wrapped resolver and are reported to the
// error handler, if any.
//
// Every role carries a generation that Invalidate replaces. A resolution only stores its
// map when the generation it started under is still current, and the shared generation
// is part of the stored key, so a resolution racing an invalidation never republishes
// the map it read before the change.
type CachedResolver struct {
	next    CapabilityResolver
	store   cache.Store
	ttl     time.Duration
	onError func(error)

	// mu orders local writes against Invalidate: writes hold it shared, bumps exclusively.
	mu          sync.RWMutex
	generations map[uint]uint64
}

// CacheOption customises a CachedResolver.
type CacheOption func(*CachedResolver)

// WithCacheTTL sets how long a resolved map is served from the cache.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(r *CachedResolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithCacheErrorHandler receives cache read, write and decode failures.
func WithCacheErrorHandler(fn func(error)) CacheOption {
	return func(r *CachedResolver) {
		r.onError = fn
	}
}

// NewCachedResolver wraps next with the provided store.
func NewCachedResolver(next CapabilityResolver, store cache.Store, opts ...CacheOption) (*CachedResolver, error) {
	if next == nil || store == nil {
		return nil, errors.New("cached resolver: resolver and store are required")
	}
	r := &CachedResolver{next: next, store: store, ttl: defaultCacheTTL, generations: make(map[uint]uint64)}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CacheKey returns the cache key holding the map of a role before its first invalidation.
func CacheKey(roleID uint) string {
	return fmt.Sprintf("capabilities:role:%d", roleID)
}

// GenerationKey returns the cache key holding the current generation of a role.
func GenerationKey(roleID uint) string {
	return fmt.Sprintf("capabilities:gen:%d", roleID)
}

func mapKey(roleID uint, generation string) string {
	if generation == "" {
		return CacheKey(roleID)
	}
	return CacheKey(roleID) + ":" + generation
}

// ResolvePermissions serves the map from the cache when present, otherwise resolves and
// stores it. When the generation cannot be read the cache is bypassed.
func (r *CachedResolver) ResolvePermissions(ctx context.Context, roleID uint) (*CapabilityMap, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	local := r.generation(roleID)

	generation, err := r.sharedGeneration(ctx, roleID)
	if err != nil {
		r.report(fmt.Errorf("cached resolver: get %s: %w", GenerationKey(roleID), err))
		return r.next.ResolvePermissions(ctx, roleID)
	}
	key := mapKey(roleID, generation)

	raw, ok, err := r.store.Get(ctx, key)
	switch {
	case err != nil:
		r.report(fmt.Errorf("cached resolver: get %s: %w", key, err))
	case ok:
		var cached CapabilityMap
		if decodeErr := json.Unmarshal(raw, &cached); decodeErr == nil {
			return &cached, nil
		} else {
			r.report(fmt.Errorf("cached resolver: decode %s: %w", key, decodeErr))
		}
	}

	resolved, err := r.next.ResolvePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(resolved)
	if err != nil {
		r.report(fmt.Errorf("cached resolver: encode %s: %w", key, err))
		return resolved, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.generations[roleID] != local {
		return resolved, nil
	}
	if err := r.store.Set(ctx, key, encoded, r.ttl); err != nil {
		r.report(fmt.Errorf("cached resolver: set %s: %w", key, err))
	}
	return resolved, nil
}

// Invalidate drops the cached maps of the given roles. Resolutions already in flight for
// those roles return their result but do not store it.
func (r *CachedResolver) Invalidate(ctx context.Context, roleIDs ...uint) error {
	if len(roleIDs) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	for _, id := range roleIDs {
		r.generations[id]++
	}
	r.mu.Unlock()

	var errs error
	keys := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		keys = append(keys, CacheKey(id))
		if err := r.store.Set(ctx, GenerationKey(id), []byte(uuid.NewString()), 0); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	errs = multierr.Append(errs, r.store.Delete(ctx, keys...))
	if errs != nil {
		return fmt.Errorf("cached resolver: invalidate: %w", errs)
	}
	return nil
}

func (r *CachedResolver) generation(roleID uint) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generations[roleID]
}

func (r *CachedResolver) sharedGeneration(ctx context.Context, roleID uint) (string, error) {
	raw, ok, err := r.store.Get(ctx, GenerationKey(roleID))
	if err != nil || !ok {
		return "", err
	}
	return string(raw), nil
}

func (r *CachedResolver) report(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
