package systemd

import (
	"errors"
	"testing"
	"time"

	logx "smartmirror/pkg/logx"
)

type recorder struct {
	states []string
	err    error
}

func (r *recorder) notify(state string) (bool, error) {
	r.states = append(r.states, state)
	return r.err == nil, r.err
}

func newTestNotifier(interval time.Duration) (*Notifier, *recorder, *time.Time) {
	rec := &recorder{}
	now := time.Unix(1000, 0)
	n := &Notifier{log: logx.Nop(), notify: rec.notify, interval: interval}
	n.now = func() time.Time { return now }
	return n, rec, &now
}

func TestWatchdogThrottled(t *testing.T) {
	t.Parallel()
	n, rec, now := newTestNotifier(time.Second)

	n.Watchdog()
	n.Watchdog()
	*now = now.Add(500 * time.Millisecond)
	n.Watchdog()
	*now = now.Add(600 * time.Millisecond)
	n.Watchdog()

	if len(rec.states) != 2 {
		t.Fatalf("pings = %v, want 2", rec.states)
	}
	for _, s := range rec.states {
		if s != "WATCHDOG=1" {
			t.Fatalf("state = %q", s)
		}
	}
}

func TestWatchdogDisabled(t *testing.T) {
	t.Parallel()
	n, rec, _ := newTestNotifier(0)
	n.Watchdog()
	n.Ready()
	if len(rec.states) != 1 || rec.states[0] != "READY=1" {
		t.Fatalf("states = %v", rec.states)
	}
}

func TestSendErrorsDoNotPanic(t *testing.T) {
	t.Parallel()
	n, rec, _ := newTestNotifier(time.Second)
	rec.err = errors.New("socket gone")
	n.Ready()
	n.Stopping()
	if !n.warned || len(rec.states) != 2 {
		t.Fatalf("warned=%v states=%v", n.warned, rec.states)
	}
}
