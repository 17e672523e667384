package traffic

import (
	"sync"
	"time"
)

// maxAge bounds how long outcomes are retained; health windows must not exceed it.
const maxAge = 10 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a weather fetch that published a snapshot.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a weather fetch that failed.
func RecordError() {
	defaultTracker.RecordError()
}

// FetchCount returns the number of fetch outcomes within the window.
func FetchCount(window time.Duration) int {
	return defaultTracker.FetchCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// IsDegraded reports whether the error share within the window reaches thresholdPct.
func IsDegraded(window time.Duration, thresholdPct float64, minSamples int) bool {
	return defaultTracker.IsDegraded(window, thresholdPct, minSamples)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker keeps sliding windows of fetch outcome timestamps. The zero value is ready to use.
type Tracker struct {
	mu           sync.Mutex
	successTimes []time.Time
	errorTimes   []time.Time
	now          func() time.Time
}

func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

func (t *Tracker) FetchCount(window time.Duration) int {
	_, total := t.ErrorRate(window)
	return total
}

// ErrorRate returns (errorCount, totalCount) within the window; totalCount = successes + errors.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	return errCount, errCount + countInWindow(t.successTimes, cutoff)
}

// IsDegraded is true when at least minSamples outcomes fall in the window and the error
// percentage is at or above thresholdPct. A non-positive threshold disables the check.
func (t *Tracker) IsDegraded(window time.Duration, thresholdPct float64, minSamples int) bool {
	if thresholdPct <= 0 {
		return false
	}
	errs, total := t.ErrorRate(window)
	if total == 0 || total < minSamples {
		return false
	}
	return float64(errs)*100/float64(total) >= thresholdPct
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
}
