package module

import (
	"image"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/gfx"
	logx "smartmirror/pkg/logx"
)

// Handler reacts to one event kind.
type Handler func(e eventbus.Event) error

// Base is the descriptor and shared machinery embedded by every module:
// identity, screen region and private surface, visual style, subscriptions,
// the per-kind handler table and cost bookkeeping.
type Base struct {
	name string
	kind string

	rect    gfx.Rect
	surface *gfx.Surface // nil for modules without a region

	Style gfx.Style
	Face  gfx.Face
	Log   logx.Logger
	Env   Env

	subs     []string
	handlers map[string]Handler

	enabled     bool
	forceRender bool
	cost        time.Duration
}

// NewBase resolves the region and style for def and allocates the surface.
// Subscriptions listed in the config are registered; handlers are added by
// the module with On.
func NewBase(env Env, def config.ModuleConfig) (*Base, error) {
	rect, ok, err := gfx.ResolveRegion(def.Position, env.Positions, env.Width, env.Height)
	if err != nil {
		return nil, err
	}
	style, err := def.StyleSpec.Resolve(env.Style)
	if err != nil {
		return nil, err
	}
	b := &Base{
		name:        def.DisplayName(),
		kind:        def.Kind,
		Style:       style,
		Env:         env,
		handlers:    map[string]Handler{},
		enabled:     !def.Disabled,
		forceRender: def.ForceRender,
	}
	if env.Assets != nil {
		b.Face = env.Assets.Face(style.FontSize)
	} else {
		b.Face = gfx.NewFace(style.FontSize)
	}
	b.Log = env.Log.With(logx.String("module", b.name), logx.String("kind", b.kind))
	if ok {
		b.rect = rect
		b.surface = gfx.NewSurface(rect)
	}
	for _, s := range def.Subscriptions {
		b.Subscribe(s)
	}
	return b, nil
}

// Descriptor returns b. It lets embedding types satisfy Module.
func (b *Base) Descriptor() *Base { return b }

func (b *Base) Name() string { return b.name }
func (b *Base) Kind() string { return b.kind }

// Rect is the screen region; zero when the module has no surface.
func (b *Base) Rect() gfx.Rect { return b.rect }

// Surface is the private offscreen bitmap, nil for non-rendering modules.
func (b *Base) Surface() *gfx.Surface { return b.surface }

// Bounds returns the surface's local bounds.
func (b *Base) Bounds() image.Rectangle {
	if b.surface == nil {
		return image.Rectangle{}
	}
	return b.surface.Bounds()
}

func (b *Base) Enabled() bool     { return b.enabled }
func (b *Base) SetEnabled(v bool) { b.enabled = v }
func (b *Base) ForceRender() bool { return b.forceRender }

// Cost is the last measured evaluate+render time.
func (b *Base) Cost() time.Duration     { return b.cost }
func (b *Base) SetCost(d time.Duration) { b.cost = d }

// Subscribe adds kind to the subscription list (once).
func (b *Base) Subscribe(kind string) {
	for _, s := range b.subs {
		if s == kind {
			return
		}
	}
	b.subs = append(b.subs, kind)
}

// Subscriptions returns the subscribed kinds.
func (b *Base) Subscriptions() []string { return append([]string(nil), b.subs...) }

// Subscribed reports whether kind is in the subscription list.
func (b *Base) Subscribed(kind string) bool {
	for _, s := range b.subs {
		if s == kind {
			return true
		}
	}
	return false
}

// On registers h for kind and subscribes to it.
func (b *Base) On(kind string, h Handler) {
	b.handlers[kind] = h
	b.Subscribe(kind)
}

// HandleEvent runs the handler registered for e.Kind. A subscribed kind
// without a handler is ignored.
func (b *Base) HandleEvent(e eventbus.Event) error {
	h, ok := b.handlers[e.Kind]
	if !ok {
		b.Log.Trace("no handler for event", logx.String("event", e.Kind))
		return nil
	}
	return h(e)
}

// Publish sends e on the shared bus.
func (b *Base) Publish(e eventbus.Event) error {
	if b.Env.Bus == nil {
		return nil
	}
	return b.Env.Bus.Publish(e)
}

// Clear fills the surface with the background color.
func (b *Base) Clear() {
	if b.surface != nil {
		b.surface.Clear(b.Style.BgColor)
	}
}

// Now reads the module clock.
func (b *Base) Now() time.Time { return b.Env.Clock()() }
