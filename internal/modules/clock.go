package modules

import (
	"smartmirror/internal/config"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
)

type clockConfig struct {
	// Format is a strftime pattern or a Go layout.
	Format string `json:"format"`
	HAlign string `json:"halign"`
	VAlign string `json:"valign"`
}

// Clock shows the current time and re-renders only when the formatted text
// changes.
type Clock struct {
	*module.Base
	format string
	halign gfx.HAlign
	valign gfx.VAlign

	text  string
	shown string
}

func NewClock(env module.Env, def config.ModuleConfig) (module.Module, error) {
	cfg := clockConfig{Format: "%I:%M:%S %p", HAlign: "center", VAlign: "middle"}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	return &Clock{
		Base:   base,
		format: cfg.Format,
		halign: gfx.ParseHAlign(cfg.HAlign),
		valign: gfx.ParseVAlign(cfg.VAlign),
	}, nil
}

func (c *Clock) Evaluate() (bool, error) {
	c.text = formatTime(c.Now(), c.format)
	return c.text != c.shown, nil
}

func (c *Clock) Render(bool) error {
	c.Clear()
	if s := c.Surface(); s != nil {
		s.TextBox(c.Face, s.Bounds(), c.text, c.Style.TextColor, c.halign, c.valign)
	}
	c.shown = c.text
	return nil
}
