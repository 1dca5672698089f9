package modules

import (
	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
	logx "smartmirror/pkg/logx"
)

type textConfig struct {
	Text   string `json:"text"`
	HAlign string `json:"halign"`
	VAlign string `json:"valign"`
}

// Text shows a static string that can be replaced with a TextEvent.
type Text struct {
	*module.Base
	text   string
	halign gfx.HAlign
	valign gfx.VAlign
	dirty  bool
}

func NewText(env module.Env, def config.ModuleConfig) (module.Module, error) {
	cfg := textConfig{HAlign: "center", VAlign: "middle"}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	t := &Text{
		Base:   base,
		text:   cfg.Text,
		halign: gfx.ParseHAlign(cfg.HAlign),
		valign: gfx.ParseVAlign(cfg.VAlign),
		dirty:  true,
	}
	t.On(TextEvent, t.onText)
	return t, nil
}

func (t *Text) onText(e eventbus.Event) error {
	var p struct {
		Text string `json:"text"`
	}
	if err := eventbus.Decode(e, &p); err != nil {
		return err
	}
	if p.Text != t.text {
		t.text = p.Text
		t.dirty = true
		t.Log.Debug("text updated", logx.Int("len", len(p.Text)))
	}
	return nil
}

// Value returns the current text.
func (t *Text) Value() string { return t.text }

func (t *Text) Evaluate() (bool, error) { return t.dirty, nil }

func (t *Text) Render(bool) error {
	t.Clear()
	if s := t.Surface(); s != nil {
		s.TextBox(t.Face, s.Bounds(), t.text, t.Style.TextColor, t.halign, t.valign)
	}
	t.dirty = false
	return nil
}
