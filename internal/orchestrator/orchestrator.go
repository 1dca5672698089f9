// Package orchestrator runs the render loop: drain and fan out events,
// evaluate every enabled module, re-render the ones that changed, composite
// all surfaces back to front and flush the frame.
//
// The loop is single threaded. Module, timer and cache state is owned by
// the goroutine calling Tick or Run; the event inbox is the only shared
// hand-off.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/time/rate"

	"smartmirror/internal/eventbus"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
	"smartmirror/internal/screen"
	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

// ConfigReloaded is published when a new configuration has been accepted.
// Fields: "debug" (bool), "disabled" (map[string]bool by module name) and
// "tick" (time.Duration).
const ConfigReloaded = "ConfigReloaded"

const (
	defaultTick      = 10 * time.Millisecond
	defaultFaultHold = 10 * time.Second
)

// Notifier receives service manager notifications.
type Notifier interface {
	Ready()
	Watchdog()
}

type Options struct {
	Tick  time.Duration
	Debug bool
	// FaultHold is how long the diagnostic screen stays up after a fault
	// before compositing resumes.
	FaultHold time.Duration
	// FaultLogEvery and FaultLogBurst throttle fault logging so a module
	// failing every tick does not flood the log.
	FaultLogEvery time.Duration
	FaultLogBurst int
	Metrics       *Metrics
	Notifier      Notifier
	Now           func() time.Time
}

// Orchestrator drives the modules. It implements module.Host.
type Orchestrator struct {
	screen  *screen.Screen
	bus     *eventbus.Bus
	modules []module.Module
	subs    []eventbus.Subscriber
	log     logx.Logger

	tick        time.Duration
	debug       bool
	pendingFull bool
	hold        *timer.Timer
	faultHold   time.Duration
	faultLog    *rate.Limiter
	lastFault   *Fault
	faults      int

	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
	changed  []module.Module
}

// New returns an orchestrator for scr fed by bus. Modules are attached with
// SetModules so they can be constructed with the orchestrator as their host.
func New(scr *screen.Screen, bus *eventbus.Bus, log logx.Logger, opts Options) *Orchestrator {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.FaultHold <= 0 {
		opts.FaultHold = defaultFaultHold
	}
	if opts.FaultLogEvery <= 0 {
		opts.FaultLogEvery = 5 * time.Second
	}
	if opts.FaultLogBurst <= 0 {
		opts.FaultLogBurst = 3
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Orchestrator{
		screen:    scr,
		bus:       bus,
		log:       log.With(logx.String("comp", "orchestrator")),
		tick:      opts.Tick,
		debug:     opts.Debug,
		faultHold: opts.FaultHold,
		hold:      timer.NewWithClock(0, opts.Now),
		faultLog:  rate.NewLimiter(rate.Every(opts.FaultLogEvery), opts.FaultLogBurst),
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		now:       opts.Now,
	}
	bus.OnDispatch = func(kind string) { o.metrics.EventsDispatch.WithLabelValues(kind).Inc() }
	bus.OnReject = func(rec map[string]any, err error) {
		o.log.Warn("inbound record dropped", logx.Err(err), logx.Int("fields", len(rec)))
	}
	return o
}

// SetModules attaches modules in registration order. Registration order is
// event delivery order; compositing runs in reverse, so earlier modules are
// drawn on top.
func (o *Orchestrator) SetModules(mods []module.Module) {
	o.modules = mods
	o.subs = make([]eventbus.Subscriber, 0, len(mods)+1)
	o.subs = append(o.subs, hostSubscriber{o})
	for _, m := range mods {
		o.subs = append(o.subs, subscriber{m: m, now: o.now})
	}
	o.changed = make([]module.Module, 0, len(mods))
}

// Modules returns the attached modules.
func (o *Orchestrator) Modules() []module.Module { return o.modules }

// Module finds a module by name.
func (o *Orchestrator) Module(name string) module.Module {
	for _, m := range o.modules {
		if m.Descriptor().Name() == name {
			return m
		}
	}
	return nil
}

// LastFault returns the most recent fault, nil if none.
func (o *Orchestrator) LastFault() *Fault { return o.lastFault }

// Faults returns how many faults have been caught.
func (o *Orchestrator) Faults() int { return o.faults }

func (o *Orchestrator) Debug() bool                 { return o.debug }
func (o *Orchestrator) SetDebug(on bool)            { o.debug = on }
func (o *Orchestrator) RequestFullRender()          { o.pendingFull = true }
func (o *Orchestrator) SetRemoteDisplay(on bool)    { o.screen.SetRemote(on) }
func (o *Orchestrator) Screen() *screen.Screen      { return o.screen }
func (o *Orchestrator) TickInterval() time.Duration { return o.tick }
func (o *Orchestrator) SetTickInterval(d time.Duration) {
	if d > 0 {
		o.tick = d
	}
}

// SetModuleEnabled toggles a module by name.
func (o *Orchestrator) SetModuleEnabled(name string, on bool) error {
	m := o.Module(name)
	if m == nil {
		return fmt.Errorf("no module named %q", name)
	}
	b := m.Descriptor()
	if b.Enabled() != on {
		b.SetEnabled(on)
		o.pendingFull = true
		o.log.Info("module toggled", logx.String("module", name), logx.Bool("enabled", on))
	}
	return nil
}

// Run performs an initial full render, signals readiness and ticks until
// ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("render loop started", logx.Int("modules", len(o.modules)), logx.Duration("tick", o.tick))
	_ = o.FullRender()
	if o.notifier != nil {
		o.notifier.Ready()
	}

	t := time.NewTimer(o.tick)
	defer t.Stop()
	for {
		_ = o.Tick()
		if o.notifier != nil {
			o.notifier.Watchdog()
		}
		t.Reset(o.tick)
		select {
		case <-ctx.Done():
			o.log.Info("render loop stopped", logx.Int("faults", o.faults))
			return nil
		case <-t.C:
		}
	}
}

// Tick runs one loop iteration. A fault is rendered as a diagnostic screen
// and returned; the caller keeps ticking.
func (o *Orchestrator) Tick() error {
	start := o.now()
	err := o.step()
	if err != nil {
		o.onFault(err)
	}
	o.metrics.TickSeconds.Observe(o.now().Sub(start).Seconds())
	return err
}

// FullRender clears the screen, force-renders every enabled module and
// presents the frame.
func (o *Orchestrator) FullRender() error {
	err := o.fullRender()
	if err != nil {
		o.onFault(err)
	}
	return err
}

func (o *Orchestrator) fullRender() error {
	for _, m := range o.modules {
		b := m.Descriptor()
		if !b.Enabled() || b.Surface() == nil {
			continue
		}
		if err := o.render(m, true); err != nil {
			return err
		}
	}
	return o.present()
}

func (o *Orchestrator) step() error {
	// 1. events
	o.bus.DrainInbox()
	if err := guard("", StageEvents, o.now, func() error { return o.bus.Fanout(o.subs) }); err != nil {
		return err
	}

	force := o.pendingFull
	o.pendingFull = false

	// 2. evaluate
	o.changed = o.changed[:0]
	enabled := 0
	for _, m := range o.modules {
		b := m.Descriptor()
		if !b.Enabled() {
			continue
		}
		enabled++
		t0 := o.now()
		var dirty bool
		err := guard(b.Name(), StageEvaluate, o.now, func() (err error) {
			dirty, err = m.Evaluate()
			return err
		})
		if err != nil {
			return err
		}
		b.SetCost(o.now().Sub(t0))
		if dirty || force || b.ForceRender() {
			o.changed = append(o.changed, m)
		}
	}
	o.metrics.EnabledModules.Set(float64(enabled))

	// 3. render changed modules only
	for _, m := range o.changed {
		if m.Descriptor().Surface() == nil {
			continue
		}
		if err := o.render(m, force); err != nil {
			return err
		}
	}
	for _, m := range o.changed {
		b := m.Descriptor()
		o.metrics.ModuleCost.WithLabelValues(b.Name()).Observe(b.Cost().Seconds())
	}

	// The diagnostic screen stays up until the hold expires.
	if o.hold.Armed() && !o.hold.Expired() {
		return nil
	}

	// 4 and 5.
	return o.present()
}

func (o *Orchestrator) render(m module.Module, force bool) error {
	b := m.Descriptor()
	t0 := o.now()
	if err := guard(b.Name(), StageRender, o.now, func() error { return m.Render(force) }); err != nil {
		return err
	}
	b.SetCost(b.Cost() + o.now().Sub(t0))
	o.metrics.ModuleRenders.WithLabelValues(b.Name()).Inc()
	return nil
}

// present composites every enabled surface in reverse registration order
// and flushes the result.
func (o *Orchestrator) present() error {
	err := guard("", StageComposite, o.now, func() error {
		o.screen.Clear()
		for i := len(o.modules) - 1; i >= 0; i-- {
			b := o.modules[i].Descriptor()
			if !b.Enabled() || b.Surface() == nil {
				continue
			}
			o.screen.Surface.Composite(b.Surface())
			if o.debug {
				o.drawDebug(b)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	err = guard("", StageFlush, o.now, o.screen.Flush)
	if err == nil {
		o.metrics.Frames.Inc()
	}
	return err
}

func (o *Orchestrator) drawDebug(b *module.Base) {
	s := o.screen.Surface
	r := b.Rect().Bounds()
	s.Outline(r, o.screen.Style.Color, 1)
	label := fmt.Sprintf("%s (%.3fs)", b.Name(), b.Cost().Seconds())
	s.Text(gfx.NewFace(13), r.Min.Add(image.Pt(2, 2)), label, o.screen.Style.Color)
}

func (o *Orchestrator) onFault(err error) {
	var f *Fault
	if !errors.As(err, &f) {
		f = &Fault{Stage: "tick", Err: err, Time: o.now()}
	}
	o.lastFault = f
	o.faults++
	o.metrics.Faults.WithLabelValues(f.Stage).Inc()

	if o.faultLog.Allow() {
		fields := []logx.Field{
			logx.String("module", f.Module),
			logx.String("stage", f.Stage),
			logx.Err(f.Err),
			logx.Int("faults", o.faults),
		}
		if f.Panicked() {
			fields = append(fields, logx.Stack(f.Stack))
		}
		o.log.Error("render loop fault", fields...)
	}

	o.showFault(f)
	o.hold.Arm(o.faultHold)
}

// showFault replaces the whole frame with a description of f.
func (o *Orchestrator) showFault(f *Fault) {
	s := o.screen.Surface
	s.Clear(gfx.MustColor("#00f"))
	text := "Exception: " + f.Error()
	if frames := stackFrames(f.Stack, 8); len(frames) > 0 {
		text += "\n"
		for _, fr := range frames {
			text += "\n" + fr
		}
	}
	s.TextBox(o.screen.Face, s.Bounds().Inset(8), text, gfx.MustColor("#ccc"), gfx.AlignLeft, gfx.AlignMiddle)
	if err := o.screen.Flush(); err != nil && o.faultLog.Allow() {
		o.log.Error("diagnostic screen flush failed", logx.Err(err))
	}
}

// subscriber adapts a module to the bus and attributes handler faults.
type subscriber struct {
	m   module.Module
	now func() time.Time
}

func (s subscriber) Subscribed(kind string) bool { return s.m.Subscribed(kind) }

func (s subscriber) HandleEvent(e eventbus.Event) error {
	return guard(s.m.Descriptor().Name(), StageEvents, s.now, func() error { return s.m.HandleEvent(e) })
}

// hostSubscriber applies loop-level events before any module sees them.
type hostSubscriber struct{ o *Orchestrator }

func (h hostSubscriber) Subscribed(kind string) bool { return kind == ConfigReloaded }

func (h hostSubscriber) HandleEvent(e eventbus.Event) error {
	o := h.o
	if v, ok := e.Get("debug"); ok {
		if on, ok := v.(bool); ok {
			o.debug = on
		}
	}
	if v, ok := e.Get("tick"); ok {
		if d, ok := v.(time.Duration); ok {
			o.SetTickInterval(d)
		}
	}
	if v, ok := e.Get("disabled"); ok {
		if m, ok := v.(map[string]bool); ok {
			for name, off := range m {
				if err := o.SetModuleEnabled(name, !off); err != nil {
					o.log.Debug("config reload: module not loaded", logx.String("module", name))
				}
			}
		}
	}
	o.pendingFull = true
	o.log.Info("configuration applied", logx.Bool("debug", o.debug), logx.Duration("tick", o.tick))
	return nil
}
