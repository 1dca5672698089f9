package modules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"smartmirror/internal/fetch"
	"smartmirror/internal/module"
)

// pollInterval is how often a module checks back on a request in flight.
const pollInterval = 100 * time.Millisecond

// newSource builds the fetch cache for a module's data source from the
// shared environment.
func newSource(b *module.Base, cfg fetch.Config) *fetch.Cache {
	env := b.Env
	opts := []fetch.Option{fetch.WithLogger(b.Log), fetch.WithClock(env.Clock())}
	if env.HTTP != nil {
		opts = append(opts, fetch.WithClient(env.HTTP))
	}
	if env.Fs != nil {
		opts = append(opts, fetch.WithFs(env.Fs))
	}
	if cfg.CacheFile == "" {
		cfg.CacheFile = env.CachePath(b.Name())
	}
	return fetch.New(cfg, opts...)
}

// lookup walks a dotted path ("list.0.title") through decoded JSON. An
// empty path returns v itself.
func lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	for _, key := range strings.Split(path, ".") {
		switch t := v.(type) {
		case map[string]any:
			next, ok := t[key]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			v = t[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// text renders a decoded JSON scalar for display.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
