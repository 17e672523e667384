// Package lifecycle holds process-wide drain state shared by main and the HTTP layer.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// drainStart is the UnixNano at which shutdown began, or 0 while serving.
var drainStart atomic.Int64

// SetShuttingDown marks the process as draining. The health route reports
// shutting-down and mutating routes are refused while it is set.
func SetShuttingDown(v bool) {
	if !v {
		drainStart.Store(0)
		return
	}
	drainStart.CompareAndSwap(0, time.Now().UnixNano())
}

// IsShuttingDown reports whether shutdown has begun.
func IsShuttingDown() bool {
	return drainStart.Load() != 0
}

// DrainingFor returns how long shutdown has been in progress, or 0.
func DrainingFor() time.Duration {
	start := drainStart.Load()
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}
