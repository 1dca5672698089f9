package modules

import (
	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/module"
	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

// alertPayload is both the static config and the event body.
type alertPayload struct {
	Header string `json:"header"`
	Body   string `json:"body"`
	Footer string `json:"footer"`
	// Timeout in milliseconds. 0 keeps the alert up; < 0 in config starts
	// the module hidden.
	Timeout int64 `json:"timeout"`
}

// Alert is a card that appears on an alert event and hides itself when its
// timeout fires.
type Alert struct {
	*module.Base
	card  module.Card
	timer *timer.Timer
}

// NewAlert handles AlertEvent plus every configured subscription, so
// WeatherAlertEvent can be routed here from config.
func NewAlert(env module.Env, def config.ModuleConfig) (module.Module, error) {
	var cfg alertPayload
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	a := &Alert{Base: base, card: module.NewCard(), timer: timer.NewWithClock(0, env.Clock())}
	a.card.Update(cfg.Header, cfg.Body, cfg.Footer)
	a.timer.ArmMillis(cfg.Timeout)
	if cfg.Timeout < 0 {
		a.SetEnabled(false)
	}
	a.On(AlertEvent, a.onAlert)
	for _, kind := range def.Subscriptions {
		a.On(kind, a.onAlert)
	}
	return a, nil
}

func (a *Alert) onAlert(e eventbus.Event) error {
	var p alertPayload
	if err := eventbus.Decode(e, &p); err != nil {
		return err
	}
	a.SetEnabled(true)
	a.card.Update(p.Header, p.Body, p.Footer)
	a.card.Touch()
	a.timer.ArmMillis(p.Timeout)
	a.Log.Info("alert shown", logx.String("event", e.Kind), logx.String("header", p.Header), logx.Int64("timeout_ms", p.Timeout))
	return nil
}

func (a *Alert) Evaluate() (bool, error) {
	dirty := a.card.Dirty()
	if a.timer.Expired() {
		a.SetEnabled(false)
		a.card.Update("", "", "")
		a.Log.Debug("alert expired")
		return false, nil
	}
	return dirty, nil
}

func (a *Alert) Render(bool) error {
	a.card.Draw(a.Surface(), a.Face, a.Style)
	return nil
}
