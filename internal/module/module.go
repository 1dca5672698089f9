// Package module defines the unit of work the render loop drives.
//
// Every module exposes Evaluate (advance state, report whether its visible
// output changed), Render (redraw its private surface) and HandleEvent
// (react to a subscribed event). Shared behavior lives in Base, which a
// module embeds.
package module

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/fetch"
	"smartmirror/internal/gfx"
	logx "smartmirror/pkg/logx"
)

// Module is implemented by every module kind.
type Module interface {
	// Evaluate mutates internal state and reports whether the visible
	// output changed since the last render.
	Evaluate() (bool, error)
	// Render redraws the module surface. force requests a full redraw even
	// if the module believes nothing changed.
	Render(force bool) error
	// HandleEvent reacts to a subscribed event. Unhandled kinds are ignored.
	HandleEvent(e eventbus.Event) error
	// Subscribed reports whether the module wants events of kind.
	Subscribed(kind string) bool
	// Descriptor exposes the shared state the loop needs for scheduling
	// and compositing.
	Descriptor() *Base
}

// Publisher is the outbound side of the event bus.
type Publisher interface {
	Publish(e eventbus.Event) error
}

// Host is the render loop seen from a module. Control modules use it to
// flip loop-level switches.
type Host interface {
	Debug() bool
	SetDebug(on bool)
	RequestFullRender()
	SetRemoteDisplay(on bool)
	SetModuleEnabled(name string, on bool) error
}

// Env is the shared construction context handed to every module factory.
type Env struct {
	Ctx       context.Context
	Width     int
	Height    int
	Positions map[string]string
	Style     gfx.Style
	Assets    *gfx.Assets
	Bus       Publisher
	Log       logx.Logger
	Fs        afero.Fs
	HTTP      fetch.Doer
	CacheDir  string
	Now       func() time.Time
	Host      Host
}

// Clock returns Now or time.Now.
func (e Env) Clock() func() time.Time {
	if e.Now != nil {
		return e.Now
	}
	return time.Now
}

// Context returns Ctx or context.Background().
func (e Env) Context() context.Context {
	if e.Ctx != nil {
		return e.Ctx
	}
	return context.Background()
}

// CachePath returns the flat cache file for a named data source, or "" when
// caching to disk is off.
func (e Env) CachePath(name string) string {
	if strings.TrimSpace(e.CacheDir) == "" {
		return ""
	}
	return strings.TrimRight(e.CacheDir, "/") + "/" + sanitize(name) + ".cache"
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Factory builds a module from its config entry.
type Factory func(env Env, def config.ModuleConfig) (Module, error)

// Registry maps module kinds to factories.
type Registry struct {
	factories map[string]Factory
	order     []string
}

func NewRegistry() *Registry { return &Registry{factories: map[string]Factory{}} }

// Register adds a factory. Registering a kind twice panics.
func (r *Registry) Register(kind string, f Factory) {
	if _, dup := r.factories[kind]; dup {
		panic(fmt.Sprintf("module: kind %q registered twice", kind))
	}
	r.factories[kind] = f
	r.order = append(r.order, kind)
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []string { return append([]string(nil), r.order...) }

// Build constructs every configured module in order. The first failure
// aborts with an error naming the module.
func (r *Registry) Build(env Env, defs []config.ModuleConfig) ([]Module, error) {
	out := make([]Module, 0, len(defs))
	for i, def := range defs {
		f, ok := r.factories[def.Kind]
		if !ok {
			return nil, fmt.Errorf("modules[%d] (%s): unknown kind %q", i, def.DisplayName(), def.Kind)
		}
		m, err := f(env, def)
		if err != nil {
			return nil, fmt.Errorf("modules[%d] (%s): %w", i, def.DisplayName(), err)
		}
		out = append(out, m)
	}
	return out, nil
}
