// Package degraded brings the service back out of the degraded health state by
// probing the upstream on a Fibonacci backoff.
package degraded

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/traffic"
)

const defaultAttemptTimeout = 10 * time.Second

// ProbeFunc checks the upstream, e.g. an API key validation call. Nil means recovered.
type ProbeFunc func(ctx context.Context) error

// Recoverer runs at most one recovery loop at a time. Notify is cheap and safe to
// call on every degraded health check.
type Recoverer struct {
	ctx            context.Context
	probe          ProbeFunc
	initial        time.Duration
	max            time.Duration
	attemptTimeout time.Duration
	onRecovered    func()
	onExhausted    func()
	logger         *zap.Logger
	running        atomic.Bool
}

// Option configures a Recoverer.
type Option func(*Recoverer)

// WithAttemptTimeout bounds each probe call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(r *Recoverer) {
		if d > 0 {
			r.attemptTimeout = d
		}
	}
}

// WithOnRecovered replaces the default of clearing the traffic window.
func WithOnRecovered(fn func()) Option {
	return func(r *Recoverer) { r.onRecovered = fn }
}

// WithOnExhausted is called when every scheduled probe has failed.
func WithOnExhausted(fn func()) Option {
	return func(r *Recoverer) { r.onExhausted = fn }
}

// NewRecoverer returns a recoverer whose loops stop when ctx is done. A non-positive
// initial delay, or max below initial, disables recovery.
func NewRecoverer(ctx context.Context, probe ProbeFunc, initial, max time.Duration, logger *zap.Logger, opts ...Option) *Recoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recoverer{
		ctx:            ctx,
		probe:          probe,
		initial:        initial,
		max:            max,
		attemptTimeout: defaultAttemptTimeout,
		onRecovered:    traffic.Reset,
		onExhausted:    func() {},
		logger:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notify starts a recovery loop unless one is already running.
func (r *Recoverer) Notify() {
	if len(fibDelays(r.initial, r.max)) == 0 {
		return
	}
	if r.running.Swap(true) {
		return
	}
	go func() {
		defer r.running.Store(false)
		r.Run(r.ctx)
	}()
}

// Running reports whether a loop is in progress.
func (r *Recoverer) Running() bool {
	return r.running.Load()
}

// Run probes after each delay (1, 2, 3, 5, 8... times the initial delay, up to max)
// and stops at the first success. It reports whether the upstream recovered.
func (r *Recoverer) Run(ctx context.Context) bool {
	delays := fibDelays(r.initial, r.max)
	for i, d := range delays {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
		}
		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		err := r.probe(attemptCtx)
		cancel()
		if err == nil {
			r.logger.Info("upstream recovered", zap.Int("attempt", i+1))
			r.onRecovered()
			return true
		}
		r.logger.Warn("recovery probe failed", zap.Int("attempt", i+1), zap.Int("of", len(delays)), zap.Error(err))
	}
	if len(delays) > 0 {
		r.logger.Error("recovery attempts exhausted", zap.Int("attempts", len(delays)))
		r.onExhausted()
	}
	return false
}

func fibDelays(initial, max time.Duration) []time.Duration {
	if initial <= 0 || max < initial {
		return nil
	}
	var out []time.Duration
	for a, b := int64(1), int64(2); ; a, b = b, a+b {
		d := time.Duration(a) * initial
		if d > max {
			break
		}
		out = append(out, d)
	}
	return out
}
