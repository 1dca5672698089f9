package config

import (
	"bytes"
	"reflect"
	"sort"

	logx "smartmirror/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging and (3) the names of modules whose entry
// changed, was added or was removed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Screen, newCfg.Screen) {
		changed = append(changed, "screen")
		attrs = append(attrs,
			logx.Int("screen.width", newCfg.Screen.Width),
			logx.Int("screen.height", newCfg.Screen.Height),
			logx.Int("screen.rotate", newCfg.Screen.Rotate),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Control != newCfg.Control {
		changed = append(changed, "control")
		attrs = append(attrs,
			logx.Bool("control.enabled", newCfg.Control.Enabled),
			logx.String("control.addr", newCfg.Control.Addr),
		)
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	if oldCfg.Tick != newCfg.Tick || oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "loop")
		attrs = append(attrs, logx.String("tick", newCfg.Tick), logx.Bool("debug", newCfg.Debug))
	}
	if !reflect.DeepEqual(oldCfg.Positions, newCfg.Positions) {
		changed = append(changed, "positions")
	}

	modules := diffModules(oldCfg.Modules, newCfg.Modules)
	if len(modules) > 0 {
		changed = append(changed, "modules")
		attrs = append(attrs, logx.Strs("modules.changed", modules))
	}
	return changed, attrs, modules
}

func diffModules(oldMods, newMods []ModuleConfig) []string {
	index := func(ms []ModuleConfig) map[string]ModuleConfig {
		out := make(map[string]ModuleConfig, len(ms))
		for _, m := range ms {
			out[m.DisplayName()] = m
		}
		return out
	}
	oldIdx, newIdx := index(oldMods), index(newMods)

	set := map[string]struct{}{}
	for name, n := range newIdx {
		o, ok := oldIdx[name]
		if !ok || !sameModule(o, n) {
			set[name] = struct{}{}
		}
	}
	for name := range oldIdx {
		if _, ok := newIdx[name]; !ok {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sameModule(a, b ModuleConfig) bool {
	if !bytes.Equal(bytes.TrimSpace(a.Config), bytes.TrimSpace(b.Config)) {
		return false
	}
	a.Config, b.Config = nil, nil
	return reflect.DeepEqual(a, b)
}
