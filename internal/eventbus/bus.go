package eventbus

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// KindField is the record key that carries the event kind on the wire.
const KindField = "event"

// ErrNoKind is returned by Publish for an event without a kind.
var ErrNoKind = errors.New("eventbus: event has no kind")

// Event is a named notification with arbitrary fields.
//
// Contract:
//   - Events are never mutated after Publish.
//   - Each published event is fanned out exactly once, then discarded.
//   - Fields should be small and JSON-serializable.
type Event struct {
	Kind   string
	ID     uuid.UUID
	Time   time.Time
	Fields map[string]any
}

// NewEvent builds an event of kind carrying fields. The kind is also stored
// under KindField so the fields round-trip through the control surface.
func NewEvent(kind string, fields map[string]any) Event {
	f := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f[KindField] = kind
	return Event{Kind: kind, Fields: f}
}

// FromRecord converts an inbound record (a decoded JSON object) into an
// event. The kind is read from KindField.
func FromRecord(rec map[string]any) (Event, error) {
	raw, ok := rec[KindField]
	if !ok {
		return Event{}, ErrNoKind
	}
	kind, ok := raw.(string)
	if !ok || kind == "" {
		return Event{}, fmt.Errorf("%w: %q is %T", ErrNoKind, KindField, raw)
	}
	return Event{Kind: kind, Fields: rec}, nil
}

// Get returns a field value.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// String returns a field rendered as a string, "" when absent.
func (e Event) String(key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Keys returns the field names in sorted order.
func (e Event) Keys() []string {
	out := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode copies the event fields into out (a pointer to a struct), matching
// on `json` tags. Numbers and strings are coerced weakly so values that went
// through JSON decode into ints, durations and bools.
func Decode(e Event, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(e.Fields); err != nil {
		return fmt.Errorf("decode %s: %w", e.Kind, err)
	}
	return nil
}

// Subscriber receives events of the kinds it subscribes to.
type Subscriber interface {
	Subscribed(kind string) bool
	HandleEvent(e Event) error
}

// Bus is the outbound queue modules publish to, plus the inbound queue fed
// by the control surface. Publish, Drain and Fanout are called only from the
// render loop; the inbox is the single cross-goroutine hand-off.
type Bus struct {
	outbound []Event
	inbox    *Inbox
	now      func() time.Time

	// OnDispatch, when set, is called once per delivered event.
	OnDispatch func(kind string)
	// OnReject, when set, is called for inbound records that are not events.
	OnReject func(rec map[string]any, err error)
}

// New returns a bus fed by inbox. A nil inbox gets a default one.
func New(inbox *Inbox) *Bus {
	if inbox == nil {
		inbox = NewInbox(0)
	}
	return &Bus{inbox: inbox, now: time.Now}
}

// Inbox returns the inbound queue.
func (b *Bus) Inbox() *Inbox { return b.inbox }

// Publish appends e to the outbound queue. Time and ID are filled in when
// zero.
func (b *Bus) Publish(e Event) error {
	if e.Kind == "" {
		return ErrNoKind
	}
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	b.outbound = append(b.outbound, e)
	return nil
}

// Pending returns the number of queued outbound events.
func (b *Bus) Pending() int { return len(b.outbound) }

// DrainInbox moves every record currently waiting in the inbox onto the
// outbound queue. Records without a kind are dropped. It never blocks.
func (b *Bus) DrainInbox() int {
	n := 0
	for {
		rec, ok := b.inbox.Poll()
		if !ok {
			return n
		}
		e, err := FromRecord(rec)
		if err == nil {
			err = b.Publish(e)
		}
		if err != nil {
			if b.OnReject != nil {
				b.OnReject(rec, err)
			}
			continue
		}
		n++
	}
}

// Drain snapshots and clears the outbound queue.
func (b *Bus) Drain() []Event {
	if len(b.outbound) == 0 {
		return nil
	}
	out := b.outbound
	b.outbound = nil
	return out
}

// Fanout delivers every queued event to each subscriber whose subscriptions
// contain its kind, in the order subs is given. Events published by handlers
// during fanout are queued for the next call. The first handler error stops
// delivery; the rest of the snapshot is dropped.
func (b *Bus) Fanout(subs []Subscriber) error {
	for _, e := range b.Drain() {
		for _, s := range subs {
			if !s.Subscribed(e.Kind) {
				continue
			}
			if err := s.HandleEvent(e); err != nil {
				return fmt.Errorf("handle %s: %w", e.Kind, err)
			}
		}
		if b.OnDispatch != nil {
			b.OnDispatch(e.Kind)
		}
	}
	return nil
}
