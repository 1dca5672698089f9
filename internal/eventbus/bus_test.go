package eventbus

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type recorder struct {
	name  string
	kinds map[string]bool
	log   *[]string
	fail  error
}

func (r *recorder) Subscribed(kind string) bool { return r.kinds[kind] }

func (r *recorder) HandleEvent(e Event) error {
	*r.log = append(*r.log, r.name+":"+e.Kind)
	return r.fail
}

func TestPublishRejectsMissingKind(t *testing.T) {
	t.Parallel()
	b := New(nil)
	if err := b.Publish(Event{}); !errors.Is(err, ErrNoKind) {
		t.Fatalf("Publish(empty) = %v, want ErrNoKind", err)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", b.Pending())
	}
	if err := b.Publish(NewEvent("Tick", nil)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := b.Drain()
	if len(got) != 1 || got[0].ID.String() == "" || got[0].Time.IsZero() {
		t.Fatalf("drained = %+v", got)
	}
	if b.Drain() != nil {
		t.Fatal("second drain should be empty")
	}
}

func TestFanoutRegistrationOrder(t *testing.T) {
	t.Parallel()
	var log []string
	a := &recorder{name: "a", kinds: map[string]bool{"X": true, "Y": true}, log: &log}
	b := &recorder{name: "b", kinds: map[string]bool{"Y": true}, log: &log}
	c := &recorder{name: "c", kinds: map[string]bool{"X": true}, log: &log}

	bus := New(nil)
	var dispatched []string
	bus.OnDispatch = func(kind string) { dispatched = append(dispatched, kind) }
	_ = bus.Publish(NewEvent("X", nil))
	_ = bus.Publish(NewEvent("Y", nil))
	_ = bus.Publish(NewEvent("Z", nil))

	if err := bus.Fanout([]Subscriber{a, b, c}); err != nil {
		t.Fatalf("Fanout: %v", err)
	}
	want := []string{"a:X", "c:X", "a:Y", "b:Y"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("delivery = %v, want %v", log, want)
	}
	if !reflect.DeepEqual(dispatched, []string{"X", "Y", "Z"}) {
		t.Fatalf("dispatched = %v", dispatched)
	}
	if bus.Pending() != 0 {
		t.Fatal("queue should be empty after fanout")
	}
}

func TestLateSubscriberMissesEvent(t *testing.T) {
	t.Parallel()
	var log []string
	bus := New(nil)
	_ = bus.Publish(NewEvent("X", nil))
	if err := bus.Fanout(nil); err != nil {
		t.Fatal(err)
	}
	late := &recorder{name: "late", kinds: map[string]bool{"X": true}, log: &log}
	if err := bus.Fanout([]Subscriber{late}); err != nil {
		t.Fatal(err)
	}
	if len(log) != 0 {
		t.Fatalf("late subscriber received %v", log)
	}
}

func TestFanoutStopsOnHandlerError(t *testing.T) {
	t.Parallel()
	var log []string
	boom := errors.New("boom")
	bad := &recorder{name: "bad", kinds: map[string]bool{"X": true}, log: &log, fail: boom}
	bus := New(nil)
	_ = bus.Publish(NewEvent("X", nil))
	_ = bus.Publish(NewEvent("X", nil))
	if err := bus.Fanout([]Subscriber{bad}); !errors.Is(err, boom) {
		t.Fatalf("Fanout = %v, want boom", err)
	}
	if len(log) != 1 {
		t.Fatalf("delivered %d, want 1", len(log))
	}
}

func TestDrainInbox(t *testing.T) {
	t.Parallel()
	in := NewInbox(4)
	bus := New(in)
	var rejected int
	bus.OnReject = func(map[string]any, error) { rejected++ }

	if n := bus.DrainInbox(); n != 0 {
		t.Fatalf("empty drain = %d", n)
	}
	in.Offer(map[string]any{"event": "AlertEvent", "header": "hi"})
	in.Offer(map[string]any{"header": "no kind"})
	in.Offer(map[string]any{"event": 7})
	if n := bus.DrainInbox(); n != 1 {
		t.Fatalf("drained = %d, want 1", n)
	}
	if rejected != 2 {
		t.Fatalf("rejected = %d, want 2", rejected)
	}
	evs := bus.Drain()
	if len(evs) != 1 || evs[0].Kind != "AlertEvent" || evs[0].String("header") != "hi" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestInboxFull(t *testing.T) {
	t.Parallel()
	in := NewInbox(1)
	if !in.Offer(map[string]any{"event": "a"}) {
		t.Fatal("first offer rejected")
	}
	if in.Offer(map[string]any{"event": "b"}) {
		t.Fatal("offer into full inbox should fail")
	}
	if _, ok := in.Poll(); !ok {
		t.Fatal("poll should return the record")
	}
	if _, ok := in.Poll(); ok {
		t.Fatal("poll on empty inbox should report false")
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()
	e, err := FromRecord(map[string]any{
		"event":   "AlertEvent",
		"header":  "Door",
		"timeout": float64(5000),
		"delay":   "2s",
		"urgent":  "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	var v struct {
		Header  string        `json:"header"`
		Timeout int64         `json:"timeout"`
		Delay   time.Duration `json:"delay"`
		Urgent  bool          `json:"urgent"`
	}
	if err := Decode(e, &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.Header != "Door" || v.Timeout != 5000 || v.Delay != 2*time.Second || !v.Urgent {
		t.Fatalf("decoded = %+v", v)
	}
}
