package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/kjstillabower/weather-companion/internal/models"
)

// Backend names used in configuration and as the cacheType metric label.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
)

// Cache stores ranked geocoding candidates by query key.
// Get returns (nil, false, nil) on a miss; an error means the backend itself failed.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.LocationCandidate, bool, error)
	Set(ctx context.Context, key string, value []models.LocationCandidate, ttl time.Duration) error
}

// InMemoryCache is a bounded, concurrency-safe Cache backed by otter.
type InMemoryCache struct {
	cache  *otter.Cache[string, cacheEntry]
	maxTTL time.Duration
	now    func() time.Time
}

type cacheEntry struct {
	value     []models.LocationCandidate
	expiresAt time.Time
}

// NewInMemoryCache creates a cache holding at most maxEntries keys. maxTTL bounds
// every entry; a Set with a shorter ttl expires earlier and a Set with ttl <= 0
// uses maxTTL.
func NewInMemoryCache(maxEntries int, maxTTL time.Duration) *InMemoryCache {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	if maxTTL <= 0 {
		maxTTL = time.Hour
	}
	return &InMemoryCache{
		cache: otter.Must(&otter.Options[string, cacheEntry]{
			MaximumSize:      maxEntries,
			InitialCapacity:  min(maxEntries, 256),
			ExpiryCalculator: otter.ExpiryWriting[string, cacheEntry](maxTTL),
		}),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string) ([]models.LocationCandidate, bool, error) {
	entry, ok := c.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.cache.Invalidate(key)
		return nil, false, nil
	}
	return cloneCandidates(entry.value), true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value []models.LocationCandidate, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	c.cache.Set(key, cacheEntry{
		value:     cloneCandidates(value),
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Len returns the approximate number of cached keys.
func (c *InMemoryCache) Len() int {
	return c.cache.EstimatedSize()
}

// cloneCandidates keeps callers from mutating cached slices. An empty result is
// preserved as a non-nil empty slice so "no matches" stays cacheable.
func cloneCandidates(in []models.LocationCandidate) []models.LocationCandidate {
	out := make([]models.LocationCandidate, len(in))
	copy(out, in)
	return out
}
