package modules

import (
	"errors"
	"strings"
	"time"

	"smartmirror/internal/config"
	"smartmirror/internal/fetch"
	"smartmirror/internal/module"
	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

const loadingText = "(loading...)"

type webAPIConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	Body    string            `json:"body"`

	Refresh   string `json:"refresh"`
	CacheFile string `json:"cache_file"`
	CacheTTL  string `json:"cache_ttl"`
	Timeout   string `json:"timeout"`

	// Cycle is how long each item stays on screen.
	Cycle   string        `json:"cycle"`
	Display webAPIDisplay `json:"display"`
}

// webAPIDisplay selects what is shown. Items is the path to the array of
// items in the payload; empty means the payload itself (an array, or one
// object shown as a single item). Header, Body and Footer are paths inside
// each item.
type webAPIDisplay struct {
	Items  string `json:"items"`
	Max    int    `json:"max"`
	Header string `json:"header"`
	Body   string `json:"body"`
	Footer string `json:"footer"`
}

type apiItem struct{ header, body, footer string }

// WebAPI polls a JSON endpoint through the fetch cache and cycles the
// extracted items through a card.
type WebAPI struct {
	*module.Base
	cfg   webAPIConfig
	api   *fetch.Cache
	card  module.Card
	cycle *timer.Timer
	every time.Duration
	fresh time.Duration

	items    []apiItem
	loaded   bool
	next     int
	cached   bool
	modified time.Time
}

func NewWebAPI(env module.Env, def config.ModuleConfig) (module.Module, error) {
	cfg := webAPIConfig{Display: webAPIDisplay{Max: 5}}
	if err := def.Decode(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("webapi: url is required")
	}
	refresh, err := duration(def, "refresh", cfg.Refresh, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	ttl, err := duration(def, "cache_ttl", cfg.CacheTTL, refresh)
	if err != nil {
		return nil, err
	}
	timeout, err := duration(def, "timeout", cfg.Timeout, 0)
	if err != nil {
		return nil, err
	}
	every, err := duration(def, "cycle", cfg.Cycle, 10*time.Second)
	if err != nil {
		return nil, err
	}
	base, err := module.NewBase(env, def)
	if err != nil {
		return nil, err
	}
	w := &WebAPI{
		Base:  base,
		cfg:   cfg,
		card:  module.NewCard(),
		cycle: timer.NewWithClock(0, env.Clock()),
		every: every,
		fresh: refresh,
	}
	w.api = newSource(base, fetch.Config{
		URL:       cfg.URL,
		Method:    cfg.Method,
		Headers:   cfg.Headers,
		Params:    cfg.Params,
		Body:      cfg.Body,
		Refresh:   refresh,
		CacheFile: cfg.CacheFile,
		TTL:       ttl,
		Timeout:   timeout,
	})
	w.card.Update("", loadingText, "")
	return w, nil
}

func (w *WebAPI) Evaluate() (bool, error) {
	switch {
	case !w.loaded || w.cycle.Expired():
		w.cycle.Arm(w.every)
		w.refresh()
		w.show()
	case w.api.InFlight():
		// A refresh that lands mid-cycle is shown from its first item.
		if w.refresh() {
			w.cycle.Arm(w.every)
			w.next = 0
			w.show()
		}
	}
	return w.card.Dirty(), nil
}

// refresh reloads the items and reports whether they came from a fresh
// response.
func (w *WebAPI) refresh() bool {
	var payload any
	res, err := w.api.FetchJSON(w.Env.Context(), false, &payload)
	if res.Text == "" {
		if err != nil && !errors.Is(err, fetch.ErrNotReady) {
			w.Log.Debug("no data yet", logx.Err(err))
		}
		return false
	}
	if err != nil && !errors.Is(err, fetch.ErrNotReady) {
		w.Log.Debug("showing cached data", logx.Err(err))
	}
	w.items = w.extract(payload)
	w.loaded = true
	// Payloads older than one refresh interval came from the file or
	// survived a failed refresh; the footer says so.
	w.cached = res.Stale || w.Now().Sub(res.Modified) > w.fresh
	w.modified = res.Modified
	return err == nil && !res.FromCache
}

func (w *WebAPI) extract(payload any) []apiItem {
	v, ok := lookup(payload, w.cfg.Display.Items)
	if !ok {
		w.Log.Warn("items path not found", logx.String("items", w.cfg.Display.Items))
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		list = []any{v}
	}
	var out []apiItem
	for _, el := range list {
		if w.cfg.Display.Max > 0 && len(out) == w.cfg.Display.Max {
			break
		}
		it, ok := w.item(el)
		if ok {
			out = append(out, it)
		}
	}
	return out
}

// item reads the configured fields; an item missing any of them is skipped.
func (w *WebAPI) item(el any) (apiItem, bool) {
	var it apiItem
	for _, f := range []struct {
		path string
		dst  *string
	}{{w.cfg.Display.Header, &it.header}, {w.cfg.Display.Body, &it.body}, {w.cfg.Display.Footer, &it.footer}} {
		if f.path == "" {
			continue
		}
		v, ok := lookup(el, f.path)
		if !ok {
			return apiItem{}, false
		}
		*f.dst = text(v)
	}
	if it.header == "" && it.body == "" && it.footer == "" {
		it.body = text(el)
	}
	return it, true
}

func (w *WebAPI) show() {
	if len(w.items) == 0 {
		return
	}
	if w.next >= len(w.items) {
		w.next = 0
	}
	it := w.items[w.next]
	w.next++
	if it.body == "" || it.body == "None" {
		it.body, it.header = it.header, ""
	}
	if w.cached {
		it.footer = strings.TrimSpace(it.footer + " (cached " + w.modified.Format("Jan 2 15:04") + ")")
	}
	w.card.Update(it.header, it.body, it.footer)
}

func (w *WebAPI) Render(bool) error {
	w.card.Draw(w.Surface(), w.Face, w.Style)
	return nil
}
