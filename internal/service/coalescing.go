package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
)

// SnapshotFetcher produces and publishes a snapshot for a coordinate. *weather.Aggregator implements it.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error)
}

// inFlightFetch is one upstream fetch that several callers may wait on.
type inFlightFetch struct {
	done     chan struct{}
	snapshot models.WeatherSnapshot
	err      error
}

// CoalescingFetcher joins concurrent fetches for the same coordinate onto a single
// upstream fetch. The fetch carries the first caller's values but not its
// cancellation; each caller's own context only bounds its wait.
type CoalescingFetcher struct {
	next    SnapshotFetcher
	timeout time.Duration

	mu       sync.Mutex
	inFlight map[string]*inFlightFetch
}

// NewCoalescingFetcher wraps next. timeout bounds how long a caller waits for a
// shared result; 0 waits until the caller's context ends.
func NewCoalescingFetcher(next SnapshotFetcher, timeout time.Duration) *CoalescingFetcher {
	return &CoalescingFetcher{
		next:     next,
		timeout:  timeout,
		inFlight: make(map[string]*inFlightFetch),
	}
}

func (c *CoalescingFetcher) Fetch(ctx context.Context, coord models.Coordinate) (models.WeatherSnapshot, error) {
	key := coord.Key()

	c.mu.Lock()
	call, joined := c.inFlight[key]
	if !joined {
		call = &inFlightFetch{done: make(chan struct{})}
		c.inFlight[key] = call
		go c.run(context.WithoutCancel(ctx), key, coord, call)
	}
	c.mu.Unlock()

	if joined {
		observability.FetchCoalescedTotal.Inc()
	}
	return c.wait(ctx, call)
}

func (c *CoalescingFetcher) run(ctx context.Context, key string, coord models.Coordinate, call *inFlightFetch) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	call.snapshot, call.err = c.next.Fetch(ctx, coord)

	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()
	close(call.done)
}

func (c *CoalescingFetcher) wait(ctx context.Context, call *inFlightFetch) (models.WeatherSnapshot, error) {
	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	select {
	case <-call.done:
		return call.snapshot, call.err
	case <-waitCtx.Done():
		return models.WeatherSnapshot{}, waitCtx.Err()
	}
}
