package modules

import (
	"errors"
	"math/rand/v2"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
	"smartmirror/internal/timer"
)

type complimentsConfig struct {
	Morning   []string `json:"morning"`
	Afternoon []string `json:"afternoon"`
	Evening   []string `json:"evening"`
	Night     []string `json:"night"`

	// Hours (0-23) at which each band starts. Morning covers everything
	// before AfternoonStart.
	AfternoonStart int `json:"afternoon_start"`
	EveningStart   int `json:"evening_start"`
	NightStart     int `json:"night_start"`

	Interval string `json:"interval"`
}

// Compliments picks a random line for the current time of day every
// interval.
type Compliments struct {
	*module.Base
	cfg      complimentsConfig
	interval time.Duration
	timer    *timer.Timer
	pick     func(n int) int
	text     string
}

func NewCompliments(env module.Env, def config.ModuleConfig) (module.Module, error) {
	cfg := complimentsConfig{AfternoonStart: 12, EveningStart: 17, NightStart: 20}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if len(cfg.Morning)+len(cfg.Afternoon)+len(cfg.Evening)+len(cfg.Night) == 0 {
		return nil, errors.New("compliments: no lines configured")
	}
	interval, err := duration(def, "interval", cfg.Interval, 30*time.Second)
	if err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	return &Compliments{
		Base:     base,
		cfg:      cfg,
		interval: interval,
		// fire on the first tick
		timer: timer.NewWithClock(time.Nanosecond, env.Clock()),
		pick:  rand.IntN,
	}, nil
}

// band returns the lines for hour, falling back to any non-empty band.
func (c *Compliments) band(hour int) []string {
	var lines []string
	switch {
	case hour < c.cfg.AfternoonStart:
		lines = c.cfg.Morning
	case hour < c.cfg.EveningStart:
		lines = c.cfg.Afternoon
	case hour < c.cfg.NightStart:
		lines = c.cfg.Evening
	default:
		lines = c.cfg.Night
	}
	if len(lines) > 0 {
		return lines
	}
	for _, l := range [][]string{c.cfg.Morning, c.cfg.Afternoon, c.cfg.Evening, c.cfg.Night} {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

func (c *Compliments) Evaluate() (bool, error) {
	if !c.timer.ExpiredRearm(c.interval) {
		return false, nil
	}
	lines := c.band(c.Now().Hour())
	c.text = lines[c.pick(len(lines))]
	return true, nil
}

func (c *Compliments) Render(bool) error {
	c.Clear()
	if s := c.Surface(); s != nil {
		s.TextBox(c.Face, s.Bounds(), c.text, c.Style.TextColor, gfx.AlignCenter, gfx.AlignMiddle)
	}
	return nil
}
