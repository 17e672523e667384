package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
)

// QueryResolver resolves a free-text query through the caching provider chain.
// Declared here so the warmer does not depend on the geocode package.
type QueryResolver interface {
	Resolve(ctx context.Context, query string) ([]models.LocationCandidate, error)
}

// CacheWarmer pre-resolves a fixed list of place queries so the first
// autocomplete for a popular city is served from the cache.
type CacheWarmer struct {
	resolver QueryResolver
	logger   *zap.Logger
}

func NewCacheWarmer(resolver QueryResolver, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{resolver: resolver, logger: logger}
}

// Warm resolves every query concurrently. Failures are joined into one error;
// successful queries stay cached regardless.
func (w *CacheWarmer) Warm(ctx context.Context, queries []string) error {
	if len(queries) == 0 {
		return nil
	}
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming geocode cache", zap.Int("queries", len(queries)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(queries))
	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			if _, err := w.resolver.Resolve(ctx, q); err != nil {
				observability.CacheWarmingErrorsTotal.Inc()
				errCh <- fmt.Errorf("warm %q: %w", q, err)
			}
		}(q)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	w.logger.Info("geocode cache warming complete",
		zap.Int("queries", len(queries)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)),
	)
	return errors.Join(errs...)
}

// WarmPeriodic runs Warm now and then every interval until ctx is done.
// A non-positive interval warms once and returns.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, queries []string, interval time.Duration) error {
	if err := w.Warm(ctx, queries); err != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, queries); err != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
