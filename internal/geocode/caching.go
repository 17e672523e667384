package geocode

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/cache"
	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
)

// CachingProvider serves repeated queries from a candidate cache. Backend errors
// are logged and counted but never fail a lookup.
type CachingProvider struct {
	next      Provider
	cache     cache.Cache
	cacheType string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewCachingProvider(next Provider, c cache.Cache, cacheType string, ttl time.Duration, logger *zap.Logger) *CachingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingProvider{next: next, cache: c, cacheType: cacheType, ttl: ttl, logger: logger}
}

func (p *CachingProvider) Name() string { return p.next.Name() }

// CacheKey is provider:limit:normalized-query.
func CacheKey(provider string, limit int, query string) string {
	return provider + ":" + strconv.Itoa(limit) + ":" + strings.ToLower(strings.TrimSpace(query))
}

func (p *CachingProvider) Search(ctx context.Context, query string, limit int) ([]models.LocationCandidate, error) {
	key := CacheKey(p.next.Name(), limit, query)

	cached, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		p.logger.Warn("geocode cache get failed", zap.String("key", key), zap.Error(err))
	case ok:
		observability.CacheHitsTotal.WithLabelValues(p.cacheType).Inc()
		return cached, nil
	default:
		observability.CacheMissesTotal.WithLabelValues(p.cacheType).Inc()
	}

	out, err := p.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, out, p.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		p.logger.Warn("geocode cache set failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}
