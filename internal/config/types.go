package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"smartmirror/internal/gfx"
	logx "smartmirror/pkg/logx"
)

const (
	DefaultTick        = 10 * time.Millisecond
	DefaultControlAddr = "127.0.0.1:8080"
	DefaultCacheDir    = "./caches"
)

type Config struct {
	Screen  ScreenConfig  `json:"screen"`
	Logging LoggingConfig `json:"logging"`
	Control ControlConfig `json:"control,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty"`
	Systemd SystemdConfig `json:"systemd,omitempty"`

	// Tick is the pause between loop iterations (Go duration string, default "10ms").
	Tick  string `json:"tick,omitempty"`
	Debug bool   `json:"debug,omitempty"`

	// CacheDir holds one flat cache file per data source.
	CacheDir string `json:"cache_dir,omitempty"`

	// Positions names screen regions as "x0,y0,x1,y1" fractions.
	Positions map[string]string `json:"positions,omitempty"`
	Modules   []ModuleConfig    `json:"modules"`
}

// ScreenConfig describes the shared output surface and its sinks.
//
// OutputFile and FrameBuffer accept "" / "null" / "None" to disable.
type ScreenConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// Rotate is applied at flush: 0, 90, 180 or 270 degrees clockwise.
	Rotate int `json:"rotate,omitempty"`

	gfx.StyleSpec

	OutputFile  string `json:"output_file,omitempty"`
	FrameBuffer string `json:"frame_buffer,omitempty"`
	// RemoteDisplay enables the file sink at startup (default true when
	// output_file is set).
	RemoteDisplay *bool `json:"remote_display,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ControlConfig configures the HTTP control surface.
//
// Example:
//
//	"control": { "enabled": true, "addr": "0.0.0.0:8080", "rate_per_sec": 5, "burst": 10 }
type ControlConfig struct {
	Enabled    bool    `json:"enabled"`
	Addr       string  `json:"addr,omitempty"` // default: "127.0.0.1:8080"
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
	QueueSize  int     `json:"queue_size,omitempty"`
	// ShutdownTimeout is a Go duration string (default "5s").
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	Pprof PprofConfig `json:"pprof,omitempty"`
}

// PprofConfig mounts net/http/pprof under /debug/pprof on the control
// server. A non-loopback addr needs a token unless allow_insecure is set.
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Token                string `json:"token,omitempty"`
	AllowInsecure        bool   `json:"allow_insecure,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
}

// MetricsConfig exposes Prometheus metrics on the control server.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// SystemdConfig controls sd_notify readiness and watchdog pings.
type SystemdConfig struct {
	Notify bool `json:"notify"`
}

// ModuleConfig is one entry of the modules list. Kind selects the
// implementation; Config holds its kind-specific settings.
type ModuleConfig struct {
	Kind     string `json:"kind"`
	Name     string `json:"name,omitempty"`
	Position string `json:"position,omitempty"`

	gfx.StyleSpec

	Subscriptions []string        `json:"subscriptions,omitempty"`
	Disabled      bool            `json:"disabled,omitempty"`
	ForceRender   bool            `json:"force_render,omitempty"`
	Config        json.RawMessage `json:"config,omitempty"`
}

// DisplayName is Name, falling back to Kind.
func (m ModuleConfig) DisplayName() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.Kind
}

// Decode strictly decodes the kind-specific settings into v. An absent
// config block leaves v untouched.
func (m ModuleConfig) Decode(v any) error {
	raw := bytes.TrimSpace(m.Config)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("module %q config: %w", m.DisplayName(), err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("module %q config: trailing data", m.DisplayName())
	}
	return nil
}

// SinkDisabled reports whether a sink path setting means "off".
func SinkDisabled(path string) bool {
	switch strings.TrimSpace(path) {
	case "", "null", "None", "none":
		return true
	}
	return false
}

// TickInterval returns the loop pause.
func (c *Config) TickInterval() (time.Duration, error) {
	return ParseDurationOrDefault("tick", c.Tick, DefaultTick)
}

// LogConfig maps the logging section onto the logger service config.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

// BaseStyle resolves the screen-level visual defaults.
func (c *Config) BaseStyle() (gfx.Style, error) {
	def := gfx.Style{
		Color:       gfx.MustColor("#fff"),
		TextColor:   gfx.MustColor("#fff"),
		BgColor:     gfx.MustColor("transparent"),
		TextBgColor: gfx.MustColor("transparent"),
		FontSize:    26,
	}
	return c.Screen.StyleSpec.Resolve(def)
}

// RemoteDisplayEnabled reports whether the file sink starts enabled.
func (c *Config) RemoteDisplayEnabled() bool {
	if c.Screen.RemoteDisplay != nil {
		return *c.Screen.RemoteDisplay
	}
	return true
}

// Validate checks the shape of the configuration once at load time so that
// later layers can rely on it.
func (c *Config) Validate() error {
	var errs []error
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		errs = append(errs, fmt.Errorf("screen: width and height must be > 0 (got %dx%d)", c.Screen.Width, c.Screen.Height))
	}
	switch c.Screen.Rotate {
	case 0, 90, 180, 270:
	default:
		errs = append(errs, fmt.Errorf("screen.rotate: must be 0, 90, 180 or 270 (got %d)", c.Screen.Rotate))
	}
	if _, err := c.BaseStyle(); err != nil {
		errs = append(errs, fmt.Errorf("screen: %w", err))
	}
	if _, err := c.TickInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("control.shutdown_timeout", c.Control.ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Control.RatePerSec < 0 || c.Control.Burst < 0 || c.Control.QueueSize < 0 {
		errs = append(errs, errors.New("control: rate_per_sec, burst and queue_size must be >= 0"))
	}

	seen := map[string]int{}
	for i, m := range c.Modules {
		path := fmt.Sprintf("modules[%d]", i)
		if strings.TrimSpace(m.Kind) == "" {
			errs = append(errs, fmt.Errorf("%s: kind is required", path))
			continue
		}
		name := m.DisplayName()
		if j, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate module name %q (also modules[%d])", path, name, j))
		}
		seen[name] = i
		if c.Screen.Width > 0 && c.Screen.Height > 0 {
			if _, _, err := gfx.ResolveRegion(m.Position, c.Positions, c.Screen.Width, c.Screen.Height); err != nil {
				errs = append(errs, fmt.Errorf("%s (%s): %w", path, name, err))
			}
		}
		if _, err := m.StyleSpec.Resolve(gfx.Style{}); err != nil {
			errs = append(errs, fmt.Errorf("%s (%s): %w", path, name, err))
		}
		for _, s := range m.Subscriptions {
			if strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Errorf("%s (%s): empty subscription", path, name))
			}
		}
	}
	return errors.Join(errs...)
}
