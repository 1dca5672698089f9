package modules

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
	logx "smartmirror/pkg/logx"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }
func newClock(t time.Time) *clock    { return &clock{t: t} }
func at(h, m, s int) time.Time       { return time.Date(2024, 1, 7, h, m, s, 0, time.UTC) }
func kinds(evs []eventbus.Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Kind
	}
	return out
}

type fakeHost struct {
	debug   bool
	full    int
	remote  *bool
	toggled map[string]bool
}

func (h *fakeHost) Debug() bool              { return h.debug }
func (h *fakeHost) SetDebug(on bool)         { h.debug = on }
func (h *fakeHost) RequestFullRender()       { h.full++ }
func (h *fakeHost) SetRemoteDisplay(on bool) { h.remote = &on }
func (h *fakeHost) SetModuleEnabled(name string, on bool) error {
	if name == "ghost" {
		return errors.New("no such module")
	}
	if h.toggled == nil {
		h.toggled = map[string]bool{}
	}
	h.toggled[name] = on
	return nil
}

func testEnv(clk *clock) (module.Env, *eventbus.Bus) {
	bus := eventbus.New(nil)
	return module.Env{
		Width:  40,
		Height: 20,
		Style:  gfx.Style{TextColor: gfx.MustColor("white"), FontSize: 13},
		Bus:    bus,
		Log:    logx.Nop(),
		Now:    clk.now,
		Host:   &fakeHost{},
	}, bus
}

func def(t *testing.T, kind, position string, cfg any) config.ModuleConfig {
	t.Helper()
	d := config.ModuleConfig{Kind: kind, Position: position}
	if cfg != nil {
		raw, err := json.Marshal(cfg)
		if err != nil {
			t.Fatal(err)
		}
		d.Config = raw
	}
	return d
}

func TestRegistryHasEveryKind(t *testing.T) {
	t.Parallel()
	got := NewRegistry().Kinds()
	sort.Strings(got)
	want := []string{"alert", "clock", "compliments", "controller", "cron", "fps", "slideshow", "text", "ticker", "weather", "webapi"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("kinds = %v", got)
	}
}

func TestStrftime(t *testing.T) {
	t.Parallel()
	tm := time.Date(2024, 1, 7, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		format, want string
	}{
		{"%Y-%m-%d %H:%M:%S", "2024-01-07 15:04:05"},
		{"%I:%M %p %a %j", "03:04 PM Sun 007"},
		{"week %U/%W", "week 02/02"},
		{"%A, %B %e", "Sunday, January  7"},
		{"100%%", "100%"},
		{"%%U", "%U"},
		{"15:04", "15:04"},
	}
	for _, tt := range tests {
		if got := formatTime(tm, tt.format); got != tt.want {
			t.Errorf("formatTime(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
	// Days before the first Monday fall in week 01 for %W.
	newYear := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := formatTime(newYear, "%U %W"); got != "02 01" {
		t.Errorf("new year weeks = %q", got)
	}
}

func TestClockChangesOncePerSecond(t *testing.T) {
	t.Parallel()
	clk := newClock(at(9, 0, 0))
	env, _ := testEnv(clk)
	m, err := NewClock(env, def(t, "clock", "0,0,1,1", map[string]string{"format": "%H:%M:%S"}))
	if err != nil {
		t.Fatal(err)
	}
	if changed, _ := m.Evaluate(); !changed {
		t.Fatal("first evaluate should report a change")
	}
	_ = m.Render(false)
	if changed, _ := m.Evaluate(); changed {
		t.Fatal("same second reported a change")
	}
	clk.add(time.Second)
	if changed, _ := m.Evaluate(); !changed {
		t.Fatal("next second not reported")
	}
}

func TestTextEvent(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(newClock(at(9, 0, 0)))
	m, err := NewText(env, def(t, "text", "0,0,1,1", map[string]string{"text": "hello"}))
	if err != nil {
		t.Fatal(err)
	}
	txt := m.(*Text)
	if changed, _ := m.Evaluate(); !changed {
		t.Fatal("initial text not dirty")
	}
	_ = m.Render(false)
	if changed, _ := m.Evaluate(); changed {
		t.Fatal("clean text reported dirty")
	}
	if !m.Subscribed(TextEvent) {
		t.Fatal("not subscribed to TextEvent")
	}
	if err := m.HandleEvent(eventbus.NewEvent(TextEvent, map[string]any{"text": "world"})); err != nil {
		t.Fatal(err)
	}
	if changed, _ := m.Evaluate(); !changed || txt.Value() != "world" {
		t.Fatalf("text = %q", txt.Value())
	}
}

func TestComplimentsBandAndInterval(t *testing.T) {
	t.Parallel()
	clk := newClock(at(9, 0, 0))
	env, _ := testEnv(clk)
	m, err := NewCompliments(env, def(t, "compliments", "0,0,1,1", map[string]any{
		"morning":  []string{"good morning"},
		"evening":  []string{"good evening"},
		"interval": "30s",
	}))
	if err != nil {
		t.Fatal(err)
	}
	c := m.(*Compliments)
	clk.add(time.Millisecond)
	if changed, _ := m.Evaluate(); !changed || c.text != "good morning" {
		t.Fatalf("changed=%v text=%q", changed, c.text)
	}
	if changed, _ := m.Evaluate(); changed {
		t.Fatal("changed before interval")
	}
	clk.t = at(18, 0, 0)
	if changed, _ := m.Evaluate(); !changed || c.text != "good evening" {
		t.Fatalf("evening text = %q", c.text)
	}
	// no afternoon lines configured: fall back to the first non-empty band
	if got := c.band(13); len(got) != 1 || got[0] != "good morning" {
		t.Fatalf("fallback band = %v", got)
	}
}

func TestComplimentsRequiresLines(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(newClock(at(9, 0, 0)))
	if _, err := NewCompliments(env, def(t, "compliments", "", nil)); err == nil {
		t.Fatal("expected error")
	}
}

func TestAlertLifecycle(t *testing.T) {
	t.Parallel()
	clk := newClock(at(9, 0, 0))
	env, _ := testEnv(clk)
	d := def(t, "alert", "0,0,1,1", map[string]any{"timeout": -1})
	d.Subscriptions = []string{WeatherAlertEvent}
	m, err := NewAlert(env, d)
	if err != nil {
		t.Fatal(err)
	}
	a := m.(*Alert)
	if a.Enabled() {
		t.Fatal("negative timeout should start disabled")
	}

	err = m.HandleEvent(eventbus.NewEvent(AlertEvent, map[string]any{
		"header": "Door", "body": "open", "timeout": float64(1000),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Enabled() {
		t.Fatal("alert not shown")
	}
	if changed, _ := m.Evaluate(); !changed {
		t.Fatal("alert not dirty")
	}
	_ = m.Render(false)

	clk.add(2 * time.Second)
	if changed, _ := m.Evaluate(); changed || a.Enabled() {
		t.Fatalf("alert still visible after timeout (changed=%v)", changed)
	}

	// routed through a configured subscription
	if err := m.HandleEvent(eventbus.NewEvent(WeatherAlertEvent, map[string]any{"header": "Storm", "timeout": "0"})); err != nil {
		t.Fatal(err)
	}
	if !a.Enabled() || a.card.Header != "Storm" {
		t.Fatalf("weather alert not shown: %+v", a.card)
	}
}

func TestCronPublishesOncePerSecond(t *testing.T) {
	t.Parallel()
	clk := newClock(at(12, 0, 0))
	env, bus := testEnv(clk)
	m, err := NewCron(env, def(t, "cron", "", map[string]any{
		"alerts": []map[string]any{
			{"cron": "12:00:00", "event": map[string]any{"event": "Noon", "note": "lunch"}},
			{"cron": "* * * * * *", "event": "Tick"},
		},
	}))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = m.Evaluate()
	_, _ = m.Evaluate()
	evs := bus.Drain()
	if got := strings.Join(kinds(evs), ","); got != "Noon,Tick" {
		t.Fatalf("published = %s", got)
	}
	if evs[0].String("note") != "lunch" {
		t.Fatalf("fields = %v", evs[0].Fields)
	}
	clk.add(time.Second)
	_, _ = m.Evaluate()
	if got := strings.Join(kinds(bus.Drain()), ","); got != "Tick" {
		t.Fatalf("published = %s", got)
	}
}

func TestCronRejectsBadRule(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(newClock(at(12, 0, 0)))
	_, err := NewCron(env, def(t, "cron", "", map[string]any{
		"alerts": []map[string]any{{"cron": "noon", "event": "X"}},
	}))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestTickerRepeats(t *testing.T) {
	t.Parallel()
	clk := newClock(at(12, 0, 0))
	env, bus := testEnv(clk)
	m, err := NewTicker(env, def(t, "ticker", "", map[string]any{
		"event": "Ping", "first_delay": "1s", "delay": "2s", "repeat": 2,
	}))
	if err != nil {
		t.Fatal(err)
	}
	steps := []struct {
		advance time.Duration
		want    int
	}{
		{0, 0},
		{time.Second, 1},
		{time.Second, 1},
		{time.Second, 2},
		{10 * time.Second, 2},
	}
	total := 0
	for i, s := range steps {
		clk.add(s.advance)
		_, _ = m.Evaluate()
		total += len(bus.Drain())
		if total != s.want {
			t.Fatalf("step %d: published %d, want %d", i, total, s.want)
		}
	}
	if m.(*Ticker).Remaining() != 0 {
		t.Fatalf("remaining = %d", m.(*Ticker).Remaining())
	}
}

func TestTickerNeedsDelay(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(newClock(at(12, 0, 0)))
	if _, err := NewTicker(env, def(t, "ticker", "", map[string]any{"event": "Ping"})); err == nil {
		t.Fatal("expected error")
	}
}

func TestController(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(newClock(at(12, 0, 0)))
	host := env.Host.(*fakeHost)
	m, err := NewController(env, def(t, "controller", "", nil))
	if err != nil {
		t.Fatal(err)
	}
	err = m.HandleEvent(eventbus.NewEvent(ControlEvent, map[string]any{
		"debug":          "on",
		"refresh":        true,
		"remote_display": "off",
		"disable":        "clock",
		"enable":         "ghost",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !host.debug || host.full != 2 || host.remote == nil || *host.remote {
		t.Fatalf("host = %+v", host)
	}
	if on, ok := host.toggled["clock"]; !ok || on {
		t.Fatalf("toggled = %v", host.toggled)
	}

	err = m.HandleEvent(eventbus.NewEvent(ControlEvent, map[string]any{"error": "boom"}))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error event = %v", err)
	}
}

func TestControllerNeedsHost(t *testing.T) {
	t.Parallel()
	env, _ := testEnv(newClock(at(12, 0, 0)))
	env.Host = nil
	if _, err := NewController(env, def(t, "controller", "", nil)); err == nil {
		t.Fatal("expected error")
	}
}

func TestFPS(t *testing.T) {
	t.Parallel()
	clk := newClock(at(12, 0, 0))
	env, _ := testEnv(clk)
	m, err := NewFPS(env, def(t, "fps", "0,0,1,1", nil))
	if err != nil {
		t.Fatal(err)
	}
	_ = m.Render(false)
	clk.add(500 * time.Millisecond)
	_ = m.Render(false)
	if got := m.(*FPS).Rate(); got != 2 {
		t.Fatalf("rate = %v, want 2", got)
	}
	if changed, _ := m.Evaluate(); !changed {
		t.Fatal("fps must redraw every tick")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	var v any
	_ = json.Unmarshal([]byte(`{"a":{"list":[{"t":"x"},{"t":2.5}]}}`), &v)
	if got, ok := lookup(v, "a.list.1.t"); !ok || text(got) != "2.5" {
		t.Fatalf("lookup = %v %v", got, ok)
	}
	for _, p := range []string{"a.nope", "a.list.9", "a.list.x"} {
		if _, ok := lookup(v, p); ok {
			t.Fatalf("lookup(%q) should fail", p)
		}
	}
}

func TestEventFrom(t *testing.T) {
	t.Parallel()
	if e, err := eventFrom("Ping"); err != nil || e.Kind != "Ping" {
		t.Fatalf("string: %v %v", e, err)
	}
	if e, err := eventFrom(map[string]any{"event": "Pong", "x": 1}); err != nil || e.Kind != "Pong" {
		t.Fatalf("object: %v %v", e, err)
	}
	for _, bad := range []any{nil, "", 3, map[string]any{"x": 1}} {
		if _, err := eventFrom(bad); err == nil {
			t.Fatalf("eventFrom(%v) should fail", bad)
		}
	}
}

func TestFlag(t *testing.T) {
	t.Parallel()
	for v, want := range map[any]bool{true: true, "on": true, "off": false, "false": false, float64(1): true} {
		if got, ok := flag(v); !ok || got != want {
			t.Errorf("flag(%v) = %v %v", v, got, ok)
		}
	}
	if _, ok := flag("maybe"); ok {
		t.Error("flag(maybe) should not be recognised")
	}
}
