package modules

import (
	"fmt"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
)

type fpsConfig struct {
	HAlign string `json:"halign"`
	VAlign string `json:"valign"`
}

// FPS redraws every tick with the rate measured between its own renders.
type FPS struct {
	*module.Base
	halign gfx.HAlign
	valign gfx.VAlign
	last   time.Time
	rate   float64
}

func NewFPS(env module.Env, def config.ModuleConfig) (module.Module, error) {
	cfg := fpsConfig{HAlign: "right", VAlign: "top"}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	return &FPS{Base: base, halign: gfx.ParseHAlign(cfg.HAlign), valign: gfx.ParseVAlign(cfg.VAlign)}, nil
}

// Rate is the last measured frames per second.
func (f *FPS) Rate() float64 { return f.rate }

func (f *FPS) Evaluate() (bool, error) { return true, nil }

func (f *FPS) Render(bool) error {
	now := f.Now()
	if !f.last.IsZero() {
		if d := now.Sub(f.last); d > 0 {
			f.rate = 1 / d.Seconds()
		} else {
			f.rate = 0
		}
	}
	f.last = now
	f.Clear()
	if s := f.Surface(); s != nil {
		s.TextBox(f.Face, s.Bounds(), fmt.Sprintf("FPS: %.2f", f.rate), f.Style.TextColor, f.halign, f.valign)
	}
	return nil
}
