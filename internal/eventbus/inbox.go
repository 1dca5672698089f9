package eventbus

// DefaultInboxSize bounds the inbound queue.
const DefaultInboxSize = 64

// Inbox is the thread-safe inbound queue written by listeners outside the
// render loop (control server, config watcher) and drained by the loop.
//
// Contract:
//   - Offer MUST be non-blocking; a full inbox rejects the record.
//   - Poll returns zero or one record and never blocks.
type Inbox struct {
	ch chan map[string]any
}

// NewInbox returns an inbox holding up to size records (DefaultInboxSize
// when size <= 0).
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{ch: make(chan map[string]any, size)}
}

// Offer enqueues rec. It reports false when the inbox is full.
func (in *Inbox) Offer(rec map[string]any) bool {
	select {
	case in.ch <- rec:
		return true
	default:
		return false
	}
}

// Poll dequeues one record if available.
func (in *Inbox) Poll() (map[string]any, bool) {
	select {
	case rec := <-in.ch:
		return rec, true
	default:
		return nil, false
	}
}

// Len returns the number of waiting records.
func (in *Inbox) Len() int { return len(in.ch) }

// Cap returns the inbox capacity.
func (in *Inbox) Cap() int { return cap(in.ch) }
