// Package systemd sends service manager notifications over $NOTIFY_SOCKET.
package systemd

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "smartmirror/pkg/logx"
)

// Notifier reports readiness and keeps the watchdog fed. Outside systemd
// (no $NOTIFY_SOCKET) every call is a no-op.
type Notifier struct {
	log    logx.Logger
	notify func(state string) (bool, error)
	now    func() time.Time

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	warned   bool
}

// NewNotifier reads the watchdog interval from the environment. Pings are
// sent at half of it, as sd_watchdog_enabled(3) recommends.
func NewNotifier(log logx.Logger) *Notifier {
	n := &Notifier{
		log:    log,
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		now:    time.Now,
	}
	if d, err := daemon.SdWatchdogEnabled(false); err != nil {
		log.Warn("watchdog settings unreadable", logx.Err(err))
	} else if d > 0 {
		n.interval = d / 2
		log.Info("systemd watchdog enabled", logx.Duration("interval", d))
	}
	return n
}

// WatchdogInterval returns the ping period, 0 when the watchdog is off.
func (n *Notifier) WatchdogInterval() time.Duration { return n.interval }

// Ready sends READY=1.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping sends STOPPING=1.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog sends WATCHDOG=1 at most once per interval.
func (n *Notifier) Watchdog() {
	if n.interval <= 0 {
		return
	}
	n.mu.Lock()
	now := n.now()
	due := n.last.IsZero() || now.Sub(n.last) >= n.interval
	if due {
		n.last = now
	}
	n.mu.Unlock()
	if due {
		n.send(daemon.SdNotifyWatchdog)
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.mu.Lock()
		first := !n.warned
		n.warned = true
		n.mu.Unlock()
		if first {
			n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		}
		return
	}
	if sent {
		n.log.Trace("sd_notify", logx.String("state", state))
	}
}
