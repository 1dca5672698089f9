// Package modules holds the built-in module kinds.
package modules

import (
	"fmt"
	"strings"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/module"
)

// Event kinds understood by the built-in modules.
const (
	TextEvent            = "TextEvent"
	AlertEvent           = "AlertEvent"
	WeatherAlertEvent    = "WeatherAlertEvent"
	WeatherForecastEvent = "WeatherForecastEvent"
	ControlEvent         = "PyMirrorEvent"
)

// Register adds every built-in kind to r.
func Register(r *module.Registry) {
	r.Register("clock", NewClock)
	r.Register("text", NewText)
	r.Register("compliments", NewCompliments)
	r.Register("alert", NewAlert)
	r.Register("cron", NewCron)
	r.Register("ticker", NewTicker)
	r.Register("webapi", NewWebAPI)
	r.Register("weather", NewWeather)
	r.Register("slideshow", NewSlideshow)
	r.Register("fps", NewFPS)
	r.Register("controller", NewController)
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *module.Registry {
	r := module.NewRegistry()
	Register(r)
	return r
}

func duration(def config.ModuleConfig, field, raw string, fallback time.Duration) (time.Duration, error) {
	return config.ParseDurationOrDefault(def.DisplayName()+".config."+field, raw, fallback)
}

// eventFrom builds an event from a config value: either a bare kind string
// or an object carrying an "event" field.
func eventFrom(v any) (eventbus.Event, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return eventbus.Event{}, eventbus.ErrNoKind
		}
		return eventbus.NewEvent(t, nil), nil
	case map[string]any:
		return eventbus.FromRecord(t)
	case nil:
		return eventbus.Event{}, eventbus.ErrNoKind
	}
	return eventbus.Event{}, fmt.Errorf("event must be a string or an object, got %T", v)
}

// flag interprets true/false/"on"/"off" style values. ok is false when v
// is absent or not recognisable.
func flag(v any) (on, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "on", "yes", "1":
			return true, true
		case "false", "off", "no", "0":
			return false, true
		}
	case float64:
		return t != 0, true
	}
	return false, false
}
