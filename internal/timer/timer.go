// Package timer provides the single reusable deadline used by the runtime and
// by every module: one-shot delays, periodic polling and "fire once then
// stop" alerts are all expressed with Arm and Expired/ExpiredRearm.
//
// A Timer is owned by one goroutine (the render loop); it is not safe for
// concurrent use.
package timer

import "time"

// Timer is a deadline that is either armed or disabled.
// The zero value is a disabled timer that uses time.Now.
type Timer struct {
	deadline time.Time // zero means disabled
	now      func() time.Time
}

// New returns a timer armed with delay (disabled when delay <= 0).
func New(delay time.Duration) *Timer {
	t := &Timer{}
	t.Arm(delay)
	return t
}

// NewWithClock is like New but reads the time from now. Used by tests.
func NewWithClock(delay time.Duration, now func() time.Time) *Timer {
	t := &Timer{now: now}
	t.Arm(delay)
	return t
}

// SetClock swaps the time source.
func (t *Timer) SetClock(now func() time.Time) { t.now = now }

func (t *Timer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Arm sets the deadline to now+delay, or disables the timer if delay <= 0.
func (t *Timer) Arm(delay time.Duration) {
	if delay <= 0 {
		t.deadline = time.Time{}
		return
	}
	t.deadline = t.clock().Add(delay)
}

// ArmMillis is Arm with a millisecond count, the unit used by event payloads.
func (t *Timer) ArmMillis(ms int64) { t.Arm(time.Duration(ms) * time.Millisecond) }

// Disable clears the deadline.
func (t *Timer) Disable() { t.deadline = time.Time{} }

// Armed reports whether a deadline is set.
func (t *Timer) Armed() bool { return !t.deadline.IsZero() }

// Deadline returns the current deadline (zero when disabled).
func (t *Timer) Deadline() time.Time { return t.deadline }

// Remaining returns the time until the deadline; 0 when disabled or passed.
func (t *Timer) Remaining() time.Duration {
	if t.deadline.IsZero() {
		return 0
	}
	if d := t.deadline.Sub(t.clock()); d > 0 {
		return d
	}
	return 0
}

func (t *Timer) reached() bool {
	if t.deadline.IsZero() {
		return false
	}
	return !t.clock().Before(t.deadline)
}

// Expired reports whether the deadline has been reached. A timer that fires
// is disabled in the same step, so it reports true exactly once (one-shot).
// A disabled timer never expires.
func (t *Timer) Expired() bool {
	if !t.reached() {
		return false
	}
	t.deadline = time.Time{}
	return true
}

// ExpiredRearm is Expired for recurring timers: when the deadline has been
// reached it re-arms with rearm (rearm <= 0 disables) and reports true.
func (t *Timer) ExpiredRearm(rearm time.Duration) bool {
	if !t.reached() {
		return false
	}
	t.Arm(rearm)
	return true
}

// Peek reports whether the deadline has been reached without changing state.
func (t *Timer) Peek() bool { return t.reached() }
