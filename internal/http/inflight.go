package http

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kjstillabower/weather-companion/internal/observability"
)

// InFlightTracker counts requests currently being served so shutdown can drain them.
type InFlightTracker struct {
	n atomic.Int64
}

func (t *InFlightTracker) Increment() { t.n.Add(1) }

func (t *InFlightTracker) Decrement() { t.n.Add(-1) }

func (t *InFlightTracker) Count() int64 { return t.n.Load() }

// WaitForZero returns nil once nothing is in flight, checking every checkInterval,
// or ctx.Err() if ctx ends first.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if t.Count() == 0 {
		return nil
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.Count() == 0 {
				return nil
			}
		}
	}
}

// requests is fed by MetricsMiddleware.
var requests = &InFlightTracker{}

// InFlightCount returns the current number of in-flight requests.
func InFlightCount() int64 {
	return requests.Count()
}

// WaitForInFlight drains in-flight requests during shutdown, publishing the
// remaining count on the shutdown gauge before and after the wait.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	observability.ShutdownInFlight.Set(float64(InFlightCount()))
	defer func() { observability.ShutdownInFlight.Set(float64(InFlightCount())) }()
	return requests.WaitForZero(ctx, checkInterval)
}
