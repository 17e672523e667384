package degraded

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjstillabower/weather-companion/internal/traffic"
)

// TestFibDelays verifies the delay sequence is Fibonacci multiples of the initial delay.
func TestFibDelays(t *testing.T) {
	tests := []struct {
		name         string
		initial, max time.Duration
		want         []time.Duration
	}{
		{"minutes", time.Minute, 13 * time.Minute, []time.Duration{1, 2, 3, 5, 8, 13}},
		{"caps at max", time.Minute, 6 * time.Minute, []time.Duration{1, 2, 3, 5}},
		{"disabled", 0, time.Minute, nil},
		{"max below initial", time.Minute, time.Second, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fibDelays(tt.initial, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				if got[i] != w*time.Minute {
					t.Errorf("delays[%d] = %v, want %v", i, got[i], w*time.Minute)
				}
			}
		})
	}
}

// TestRun_Recovers verifies the loop stops at the first successful probe.
func TestRun_Recovers(t *testing.T) {
	var attempts atomic.Int32
	probe := func(ctx context.Context) error {
		if attempts.Add(1) >= 2 {
			return nil
		}
		return errors.New("fail")
	}
	var recovered, exhausted atomic.Bool
	r := NewRecoverer(context.Background(), probe, 10*time.Millisecond, 100*time.Millisecond, nil,
		WithOnRecovered(func() { recovered.Store(true) }),
		WithOnExhausted(func() { exhausted.Store(true) }),
	)

	if !r.Run(context.Background()) {
		t.Fatal("Run() = false, want recovered")
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
	if !recovered.Load() || exhausted.Load() {
		t.Errorf("recovered = %v, exhausted = %v", recovered.Load(), exhausted.Load())
	}
}

// TestRun_Exhausted verifies onExhausted runs after every probe fails.
func TestRun_Exhausted(t *testing.T) {
	var attempts atomic.Int32
	probe := func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("always fail")
	}
	var exhausted atomic.Bool
	r := NewRecoverer(context.Background(), probe, 5*time.Millisecond, 20*time.Millisecond, nil,
		WithOnExhausted(func() { exhausted.Store(true) }))

	if r.Run(context.Background()) {
		t.Fatal("Run() = true, want false")
	}
	if !exhausted.Load() {
		t.Error("onExhausted not called")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (5ms, 10ms, 15ms)", got)
	}
}

// TestRun_DefaultClearsTrafficWindow verifies a recovery clears recorded errors.
func TestRun_DefaultClearsTrafficWindow(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	for i := 0; i < 4; i++ {
		traffic.RecordError()
	}

	r := NewRecoverer(context.Background(), func(ctx context.Context) error { return nil }, time.Millisecond, time.Millisecond, nil)
	r.Run(context.Background())

	if _, total := traffic.ErrorRate(time.Minute); total != 0 {
		t.Errorf("traffic total after recovery = %d, want 0", total)
	}
}

// TestRun_AttemptTimeout verifies each probe gets its own deadline.
func TestRun_AttemptTimeout(t *testing.T) {
	var sawDeadline atomic.Bool
	probe := func(ctx context.Context) error {
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= 50*time.Millisecond {
			sawDeadline.Store(true)
		}
		return nil
	}
	r := NewRecoverer(context.Background(), probe, time.Millisecond, time.Millisecond, nil,
		WithAttemptTimeout(50*time.Millisecond), WithOnRecovered(func() {}))
	r.Run(context.Background())

	if !sawDeadline.Load() {
		t.Error("probe context had no attempt deadline")
	}
}

// TestRun_ContextCancelled verifies a cancelled context stops the loop before probing.
func TestRun_ContextCancelled(t *testing.T) {
	var called atomic.Bool
	probe := func(ctx context.Context) error {
		called.Store(true)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRecoverer(ctx, probe, time.Minute, 13*time.Minute, nil)
	if r.Run(ctx) {
		t.Error("Run() = true after cancel")
	}
	if called.Load() {
		t.Error("probe called after cancel")
	}
}

// TestNotify_SingleLoop verifies concurrent notifications start only one loop.
func TestNotify_SingleLoop(t *testing.T) {
	release := make(chan struct{})
	var probes atomic.Int32
	probe := func(ctx context.Context) error {
		probes.Add(1)
		<-release
		return nil
	}
	r := NewRecoverer(context.Background(), probe, time.Millisecond, time.Millisecond, nil,
		WithOnRecovered(func() {}))

	for i := 0; i < 5; i++ {
		r.Notify()
	}
	deadline := time.Now().Add(time.Second)
	for probes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !r.Running() {
		t.Error("Running() = false during loop")
	}
	r.Notify()
	close(release)

	for r.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := probes.Load(); got != 1 {
		t.Errorf("probes = %d, want 1", got)
	}
	if r.Running() {
		t.Error("Running() = true after recovery")
	}
}

// TestNotify_DisabledIsNoop verifies a zero initial delay never starts a loop.
func TestNotify_DisabledIsNoop(t *testing.T) {
	var called atomic.Bool
	r := NewRecoverer(context.Background(), func(ctx context.Context) error {
		called.Store(true)
		return nil
	}, 0, time.Minute, nil)

	r.Notify()
	time.Sleep(10 * time.Millisecond)
	if r.Running() || called.Load() {
		t.Error("disabled recoverer ran")
	}
}
