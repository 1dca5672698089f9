package modules

import (
	"errors"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/module"
	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

type tickerConfig struct {
	Event      any    `json:"event"`
	FirstDelay string `json:"first_delay"`
	Delay      string `json:"delay"`
	// Repeat is how many times to publish; -1 repeats forever.
	Repeat *int `json:"repeat"`
}

// Ticker publishes an event after a first delay and then every delay, a
// fixed number of times or forever. It draws nothing.
type Ticker struct {
	*module.Base
	event  eventbus.Event
	delay  time.Duration
	repeat int
	timer  *timer.Timer
}

func NewTicker(env module.Env, def config.ModuleConfig) (module.Module, error) {
	var cfg tickerConfig
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	e, err := eventFrom(cfg.Event)
	if err != nil {
		return nil, err
	}
	first, err := duration(def, "first_delay", cfg.FirstDelay, 0)
	if err != nil {
		return nil, err
	}
	delay, err := duration(def, "delay", cfg.Delay, 0)
	if err != nil {
		return nil, err
	}
	repeat := -1
	if cfg.Repeat != nil {
		repeat = *cfg.Repeat
	}
	if delay <= 0 && (first <= 0 || repeat != 1) {
		return nil, errors.New("ticker: delay must be > 0 unless a single event is scheduled with first_delay")
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	if first <= 0 {
		first = delay
	}
	return &Ticker{
		Base:   base,
		event:  e,
		delay:  delay,
		repeat: repeat,
		timer:  timer.NewWithClock(first, env.Clock()),
	}, nil
}

// Remaining is the number of publishes left; -1 means unlimited.
func (t *Ticker) Remaining() int { return t.repeat }

func (t *Ticker) Evaluate() (bool, error) {
	if !t.timer.Expired() || t.repeat == 0 {
		return false, nil
	}
	e := t.event
	e.Fields = cloneFields(e.Fields)
	if err := t.Publish(e); err != nil {
		return false, err
	}
	if t.repeat > 0 {
		t.repeat--
	}
	t.Log.Debug("ticker fired", logx.String("event", e.Kind), logx.Int("remaining", t.repeat))
	if t.repeat != 0 {
		t.timer.Arm(t.delay)
	}
	return false, nil
}

func (t *Ticker) Render(bool) error { return nil }
