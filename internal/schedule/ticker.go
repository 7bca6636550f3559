package schedule

import (
	"fmt"
	"time"
)

// Ticker decides when a periodic function is due to fire. It holds a single
// monotonically advancing deadline and corrects for execution drift: after a
// stall (slow tick, system suspend) the deadline is advanced by whole periods
// until it passes the current time, so the long-run phase of the schedule is
// preserved and a backlog never produces a burst of catch-up fires.
//
// Ticker is a pure state machine. It owns no goroutine and no clock; callers
// poll Tick with the current time at a granularity finer than the period.
// It is not safe for concurrent use — each function unit owns its own Ticker.
type Ticker struct {
	period time.Duration
	next   time.Time
}

// New creates a Ticker anchored at now. The first Tick at or after now fires
// immediately; subsequent fires land on now+period, now+2*period, and so on.
// A period <= 0 is a configuration error.
func New(period time.Duration, now time.Time) (*Ticker, error) {
	if period <= 0 {
		return nil, fmt.Errorf("schedule: period must be positive, got %v", period)
	}
	return &Ticker{period: period, next: now}, nil
}

// Tick reports whether the schedule is due at now. When it fires, the
// deadline is advanced past now in whole-period steps, so at most one fire
// is produced per elapsed period no matter how long the caller stalled.
func (t *Ticker) Tick(now time.Time) bool {
	if now.Before(t.next) {
		return false
	}
	for !t.next.After(now) {
		t.next = t.next.Add(t.period)
	}
	return true
}

// Period returns the configured period.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Next returns the current deadline. Exposed for observability; only Tick
// mutates it.
func (t *Ticker) Next() time.Time {
	return t.next
}
