// Package app assembles the mirror: configuration, logging, the screen and
// its sinks, the module set, the render loop and the control server, all
// run under one supervisor.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"smartmirror/internal/config"
	"smartmirror/internal/control"
	"smartmirror/internal/eventbus"
	"smartmirror/internal/gfx"
	"smartmirror/internal/module"
	"smartmirror/internal/modules"
	"smartmirror/internal/orchestrator"
	"smartmirror/internal/runtime/supervisor"
	"smartmirror/internal/screen"
	logx "smartmirror/pkg/logx"
	"smartmirror/pkg/systemd"
)

const (
	defaultQueueSize   = 64
	defaultHTTPTimeout = 30 * time.Second
)

// Overrides are command line settings that win over the config file.
// Empty fields leave the file value alone.
type Overrides struct {
	FrameBuffer string
	OutputFile  string
	LogLevel    string
}

func (o Overrides) apply(cfg *config.Config) {
	if o.FrameBuffer != "" {
		cfg.Screen.FrameBuffer = o.FrameBuffer
	}
	if o.OutputFile != "" {
		cfg.Screen.OutputFile = o.OutputFile
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
}

type App struct {
	cfgm      *config.ConfigManager
	overrides Overrides

	log  logx.Logger
	logs *logx.Service

	fs     afero.Fs
	inbox  *eventbus.Inbox
	bus    *eventbus.Bus
	screen *screen.Screen
	orch   *orchestrator.Orchestrator
	reg    *prometheus.Registry
	ctrl   *control.Server
	notify *systemd.Notifier

	// ctx is handed to modules; it ends when Run returns.
	ctx    context.Context
	cancel context.CancelFunc

	sup *supervisor.Supervisor
}

// New loads cfgPath and builds every component. Any configuration problem
// is returned before anything starts.
func New(cfgPath string, ov Overrides) (*App, error) {
	return NewWithFs(cfgPath, ov, afero.NewOsFs())
}

// NewWithFs is New with an explicit filesystem for sinks, caches and assets.
func NewWithFs(cfgPath string, ov Overrides, fs afero.Fs) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Parse()
	if err != nil {
		return nil, err
	}
	ov.apply(cfg)
	cfgm.Commit(cfg)

	logSvc, log := logx.New(cfg.LogConfig())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	tick, err := cfg.TickInterval()
	if err != nil {
		return nil, err
	}
	style, err := cfg.BaseStyle()
	if err != nil {
		return nil, err
	}

	scr := screen.New(cfg.Screen.Width, cfg.Screen.Height, style, cfg.Screen.Rotate, log)
	if err := addSinks(scr, fs, cfg); err != nil {
		return nil, err
	}

	queue := cfg.Control.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	inbox := eventbus.NewInbox(queue)
	bus := eventbus.New(inbox)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		cfgm:      cfgm,
		overrides: ov,
		log:       log.With(logx.String("comp", "app")),
		logs:      logSvc,
		fs:        fs,
		inbox:     inbox,
		bus:       bus,
		screen:    scr,
		reg:       reg,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	opts := orchestrator.Options{
		Tick:    tick,
		Debug:   cfg.Debug,
		Metrics: orchestrator.NewMetrics(reg),
	}
	if cfg.Systemd.Notify {
		a.notify = systemd.NewNotifier(log.With(logx.String("comp", "systemd")))
		opts.Notifier = a.notify
	}
	a.orch = orchestrator.New(scr, bus, log.With(logx.String("comp", "loop")), opts)

	env := module.Env{
		Ctx:       a.ctx,
		Width:     cfg.Screen.Width,
		Height:    cfg.Screen.Height,
		Positions: cfg.Positions,
		Style:     style,
		Assets:    gfx.NewAssets(fs),
		Bus:       bus,
		Log:       log,
		Fs:        fs,
		HTTP:      &http.Client{Timeout: defaultHTTPTimeout},
		CacheDir:  cacheDir(cfg),
		Host:      a.orch,
	}
	if env.CacheDir != "" {
		if err := fs.MkdirAll(env.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("cache_dir: %w", err)
		}
	}
	mods, err := modules.NewRegistry().Build(env, cfg.Modules)
	if err != nil {
		a.cancel()
		return nil, err
	}
	a.orch.SetModules(mods)

	if cfg.Control.Enabled {
		shutdown, err := config.ParseDurationOrDefault("control.shutdown_timeout", cfg.Control.ShutdownTimeout, 5*time.Second)
		if err != nil {
			a.cancel()
			return nil, err
		}
		var gatherer prometheus.Gatherer
		if cfg.Metrics.Enabled {
			gatherer = reg
		}
		a.ctrl = control.NewServer(control.Config{
			Addr:            cfg.Control.Addr,
			RatePerSec:      cfg.Control.RatePerSec,
			Burst:           cfg.Control.Burst,
			ShutdownTimeout: shutdown,
			Debug:           strings.EqualFold(cfg.Logging.Level, "debug"),
			Pprof: control.PprofConfig{
				Enabled:              cfg.Control.Pprof.Enabled,
				Token:                cfg.Control.Pprof.Token,
				AllowInsecure:        cfg.Control.Pprof.AllowInsecure,
				MutexProfileFraction: cfg.Control.Pprof.MutexProfileFraction,
				BlockProfileRate:     cfg.Control.Pprof.BlockProfileRate,
			},
		}, inbox, gatherer, a.health, log)
	}

	a.log.Info("mirror configured",
		logx.String("config", cfgPath),
		logx.Int("width", cfg.Screen.Width),
		logx.Int("height", cfg.Screen.Height),
		logx.Int("modules", len(mods)),
		logx.Int("sinks", scr.Sinks()),
		logx.Duration("tick", tick),
	)
	return a, nil
}

func cacheDir(cfg *config.Config) string {
	if strings.TrimSpace(cfg.CacheDir) == "" {
		return config.DefaultCacheDir
	}
	if config.SinkDisabled(cfg.CacheDir) {
		return ""
	}
	return cfg.CacheDir
}

// addSinks attaches the configured outputs. The output file follows the
// remote display toggle; the framebuffer is always written.
func addSinks(scr *screen.Screen, fs afero.Fs, cfg *config.Config) error {
	if !config.SinkDisabled(cfg.Screen.OutputFile) {
		fsink, err := screen.NewFileSink(fs, cfg.Screen.OutputFile)
		if err != nil {
			return err
		}
		scr.AddSink(fsink, true)
	}
	if !config.SinkDisabled(cfg.Screen.FrameBuffer) {
		scr.AddSink(screen.NewFramebufferSink(fs, cfg.Screen.FrameBuffer), false)
	}
	scr.SetRemote(cfg.RemoteDisplayEnabled())
	return nil
}

// Orchestrator exposes the render loop, mainly for tests.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Handler returns the control server's handler, nil when it is disabled.
func (a *App) Handler() http.Handler {
	if a.ctrl == nil {
		return nil
	}
	return a.ctrl.Handler()
}

func (a *App) health() any {
	out := map[string]any{"queue_cap": a.inbox.Cap()}
	if a.sup != nil {
		out["tasks"] = a.sup.Snapshot()
	}
	return out
}

// Run starts every component and blocks until ctx is cancelled or a task
// fails. The returned error is the first task failure, if any.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	reloads := a.cfgm.Subscribe(4)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(reloads)
		a.reloadLoop(c, reloads)
		return nil
	})
	if a.ctrl != nil {
		a.sup.GoRestart("control.http", a.ctrl.Run, supervisor.RestartPolicy{
			MinBackoff:  time.Second,
			MaxBackoff:  time.Minute,
			MaxRestarts: 10,
		})
	}
	a.sup.Go("render", a.orch.Run)

	a.log.Info("mirror started")
	<-a.sup.Context().Done()
	return a.stop()
}

func (a *App) stop() error {
	a.log.Info("stopping")
	if a.notify != nil {
		a.notify.Stopping()
	}
	a.sup.Cancel()
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.sup.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		a.log.Warn("tasks still running at shutdown", logx.Any("tasks", a.sup.Snapshot().Tasks))
		err = nil
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// reloadLoop turns accepted configurations into ConfigReloaded events for
// the render loop and re-applies the logging settings in place.
func (a *App) reloadLoop(ctx context.Context, ch <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-ch:
					if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			a.overrides.apply(cfg)
			a.applyReload(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyReload(prev, cfg *config.Config) {
	sections, attrs, changedMods := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(cfg.LogConfig())

	for _, s := range sections {
		switch s {
		case "screen", "positions", "control", "metrics":
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}
	rec, restart := reloadRecord(prev, cfg, changedMods)
	if len(restart) > 0 {
		a.log.Warn("module definitions changed; restart required", logx.Strs("modules", restart))
	}
	if !a.inbox.Offer(rec) {
		a.log.Warn("config reload not delivered: event queue full")
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// reloadRecord builds the inbound record for a reload. Modules whose entry
// differs only in the disabled flag are toggled live; any other difference
// is returned in restart.
func reloadRecord(prev, cfg *config.Config, changed []string) (map[string]any, []string) {
	tick, err := cfg.TickInterval()
	if err != nil {
		tick = config.DefaultTick
	}
	old := map[string]config.ModuleConfig{}
	if prev != nil {
		for _, m := range prev.Modules {
			old[m.DisplayName()] = m
		}
	}
	// Only flags that flipped are sent. Modules hidden at runtime (an
	// expired alert, a controller toggle) keep their state otherwise.
	disabled := map[string]bool{}
	for _, m := range cfg.Modules {
		if o, had := old[m.DisplayName()]; had && o.Disabled != m.Disabled {
			disabled[m.DisplayName()] = m.Disabled
		}
	}
	var restart []string
	for _, name := range changed {
		o, had := old[name]
		n, has := moduleByName(cfg, name)
		if !had || !has {
			restart = append(restart, name)
			continue
		}
		o.Disabled = n.Disabled
		if !sameDefinition(o, n) {
			restart = append(restart, name)
		}
	}
	return map[string]any{
		"event":    orchestrator.ConfigReloaded,
		"debug":    cfg.Debug,
		"tick":     tick,
		"disabled": disabled,
	}, restart
}

func moduleByName(cfg *config.Config, name string) (config.ModuleConfig, bool) {
	for _, m := range cfg.Modules {
		if m.DisplayName() == name {
			return m, true
		}
	}
	return config.ModuleConfig{}, false
}

func sameDefinition(a, b config.ModuleConfig) bool {
	_, _, mods := config.SummarizeConfigChange(
		&config.Config{Modules: []config.ModuleConfig{a}},
		&config.Config{Modules: []config.ModuleConfig{b}},
	)
	return len(mods) == 0
}
