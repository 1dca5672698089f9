package modules

import (
	"errors"
	"fmt"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/crontab"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/module"
	logx "smartmirror/pkg/logx"
)

type cronEntry struct {
	Cron  string `json:"cron"`
	Event any    `json:"event"`
}

type cronConfig struct {
	Alerts []cronEntry `json:"alerts"`
}

// Cron publishes a configured event whenever one of its recurrence rules
// matches the current second. It draws nothing.
type Cron struct {
	*module.Base
	tab    *crontab.Crontab
	events []eventbus.Event
}

func NewCron(env module.Env, def config.ModuleConfig) (module.Module, error) {
	var cfg cronConfig
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Alerts) == 0 {
		return nil, errors.New("cron: no alerts configured")
	}
	specs := make([]string, len(cfg.Alerts))
	events := make([]eventbus.Event, len(cfg.Alerts))
	for i, a := range cfg.Alerts {
		e, err := eventFrom(a.Event)
		if err != nil {
			return nil, fmt.Errorf("cron: alerts[%d].event: %w", i, err)
		}
		specs[i] = a.Cron
		events[i] = e
	}
	tab, err := crontab.New(specs)
	if err != nil {
		return nil, err
	}
	tab.SetClock(env.Clock())

	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	c := &Cron{Base: base, tab: tab, events: events}
	now := c.Now()
	for i := range specs {
		c.logNext(i, now)
	}
	return c, nil
}

func (c *Cron) logNext(i int, now time.Time) {
	next, err := c.tab.Next(i, now)
	if err != nil {
		c.Log.Warn("cron rule has no next fire time", logx.Int("rule", i), logx.Err(err))
		return
	}
	c.Log.Info("cron next fire", logx.Int("rule", i), logx.String("event", c.events[i].Kind), logx.Time("at", next))
}

func (c *Cron) Evaluate() (bool, error) {
	for _, i := range c.tab.Check() {
		e := c.events[i]
		e.Fields = cloneFields(e.Fields)
		if err := c.Publish(e); err != nil {
			return false, err
		}
		c.Log.Debug("cron fired", logx.String("event", e.Kind), logx.Int("rule", i))
		c.logNext(i, c.Now())
	}
	return false, nil
}

func (c *Cron) Render(bool) error { return nil }

func cloneFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
