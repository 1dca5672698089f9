// Package fetch wraps one outbound HTTP request with a minimum refresh
// interval, an in-memory last-good payload, a file-backed durable cache and
// non-blocking execution that the render loop polls once per tick.
//
// A Cache is owned by a single goroutine (the render loop). The only
// concurrency is the request goroutine it starts, which hands its result
// back over a channel.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/afero"

	"smartmirror/internal/timer"
	logx "smartmirror/pkg/logx"
)

const (
	defaultPollTick = time.Millisecond
	defaultTimeout  = 30 * time.Second
	defaultRetry    = 30 * time.Second
	maxBodyBytes    = 8 << 20
)

// Doer is the HTTP client surface used by Cache. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes one data source.
type Config struct {
	URL     string
	Method  string            // default GET
	Headers map[string]string // default Accept: application/json
	Params  map[string]string // query parameters
	Body    string            // sent for non-GET methods

	// Refresh is the minimum interval between network requests while an
	// in-memory payload is held.
	Refresh time.Duration
	// CacheFile is the backing file; empty disables the durable cache.
	CacheFile string
	// TTL is the file staleness threshold; <= 0 disables file caching.
	TTL time.Duration
	// Retry is the delay before another network attempt after a failure.
	Retry time.Duration
	// Timeout bounds one request round trip.
	Timeout time.Duration
	// PollTick is how long a non-blocking call yields to the request.
	PollTick time.Duration
}

// Result is what a fetch produced. FromCache is false only when Text was
// obtained by a fresh successful request in this call. Stale is set when
// Text is a previous payload served because the latest attempt failed.
type Result struct {
	Text      string
	FromCache bool
	Stale     bool
	Modified  time.Time
}

type outcome struct {
	text string
	err  error
}

type task struct {
	done   chan outcome
	cancel context.CancelFunc
}

// Cache is a TTL-based, stale-tolerant fetch cache for one data source.
type Cache struct {
	cfg    Config
	client Doer
	file   fileCache
	log    logx.Logger
	now    func() time.Time

	gate *timer.Timer // armed while no network attempt is allowed

	text     string
	hasText  bool
	modified time.Time

	err        error
	lastResort bool
	task       *task
	requests   int
}

// Option configures a Cache.
type Option func(*Cache)

// WithClient sets the HTTP client.
func WithClient(d Doer) Option { return func(c *Cache) { c.client = d } }

// WithFs sets the filesystem holding the cache file.
func WithFs(fs afero.Fs) Option { return func(c *Cache) { c.file.fs = fs } }

// WithLogger sets the logger.
func WithLogger(l logx.Logger) Option { return func(c *Cache) { c.log = l } }

// WithClock sets the time source used for staleness and refresh.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns a cache for cfg.
func New(cfg Config, opts ...Option) *Cache {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry <= 0 {
		cfg.Retry = defaultRetry
	}
	if cfg.PollTick <= 0 {
		cfg.PollTick = defaultPollTick
	}
	c := &Cache{
		cfg:    cfg,
		client: http.DefaultClient,
		file:   fileCache{fs: afero.NewOsFs(), path: cfg.CacheFile, ttl: cfg.TTL},
		log:    logx.Nop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.gate = timer.NewWithClock(0, c.now)
	return c
}

// URL returns the configured endpoint.
func (c *Cache) URL() string { return c.cfg.URL }

// Requests returns how many network requests have been started.
func (c *Cache) Requests() int { return c.requests }

// Err returns the last fetch error, nil after a success.
func (c *Cache) Err() error { return c.err }

// InFlight reports whether a request is outstanding.
func (c *Cache) InFlight() bool { return c.task != nil }

// SetParams replaces the query parameters for subsequent requests.
func (c *Cache) SetParams(p map[string]string) { c.cfg.Params = p }

// Invalidate drops the in-memory payload and allows an immediate request.
// The backing file is kept.
func (c *Cache) Invalidate() {
	c.text, c.hasText = "", false
	c.gate.Disable()
}

// Cancel discards an outstanding request.
func (c *Cache) Cancel() {
	if c.task != nil {
		c.task.cancel()
		c.task = nil
	}
}

// FetchText returns the payload for this source.
//
// Order: in-memory payload within the refresh interval, then the backing
// file if within TTL, then the network. In blocking mode one round trip is
// awaited. Otherwise the outstanding request is started or resumed, given
// PollTick to finish, and ErrNotReady is returned if it has not.
//
// On failure the error is returned together with the previous payload, if
// any, flagged Stale. With no previous payload the backing file is read once
// regardless of age as a last resort.
func (c *Cache) FetchText(ctx context.Context, blocking bool) (Result, error) {
	return c.fetch(ctx, blocking, nil)
}

// FetchJSON is FetchText with the body decoded into v. A fresh body that
// does not decode is treated like a failed request: it is reported as an
// *Error of kind ErrParse, the previous payload is kept in memory and on
// disk, and v is populated from that payload, flagged Stale.
func (c *Cache) FetchJSON(ctx context.Context, blocking bool, v any) (Result, error) {
	res, err := c.fetch(ctx, blocking, jsonCheck(v))
	if res.Text == "" {
		return res, err
	}
	if perr := json.Unmarshal([]byte(res.Text), v); perr != nil {
		return Result{}, &Error{Kind: ErrParse, URL: c.cfg.URL, Err: perr}
	}
	return res, err
}

// jsonCheck decodes into a scratch value of v's type so a rejected body
// leaves v untouched.
func jsonCheck(v any) func(string) error {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer {
		return func(text string) error { return json.Unmarshal([]byte(text), v) }
	}
	return func(text string) error {
		return json.Unmarshal([]byte(text), reflect.New(t.Elem()).Interface())
	}
}

// fetch implements FetchText. check, when set, must accept a payload
// before it is adopted from the network or the backing file.
func (c *Cache) fetch(ctx context.Context, blocking bool, check func(string) error) (Result, error) {
	now := c.now()
	valid := func(text string) bool { return text != "" && (check == nil || check(text) == nil) }

	if c.gate.Armed() && !c.gate.Peek() {
		if c.hasText {
			return c.cached(), c.err
		}
		if c.err != nil {
			return Result{}, c.err
		}
	}

	if !c.hasText || c.err == nil {
		if mod, ok := c.file.fresh(now); ok {
			if text, _, err := c.file.read(); err == nil && valid(text) {
				c.text, c.hasText, c.modified = text, true, mod
				c.err = nil
				c.gate.Arm(mod.Add(c.cfg.TTL).Sub(now))
				return c.cached(), nil
			}
		}
	}

	out, ready := c.poll(ctx, blocking)
	if !ready {
		if c.hasText {
			return c.cached(), ErrNotReady
		}
		return Result{}, ErrNotReady
	}

	if out.err == nil && check != nil {
		if perr := check(out.text); perr != nil {
			out.err = &Error{Kind: ErrParse, URL: c.cfg.URL, Err: perr}
		}
	}
	if out.err == nil {
		c.store(out.text)
		return Result{Text: out.text, Modified: c.modified}, nil
	}

	c.err = out.err
	c.gate.Arm(c.cfg.Retry)
	c.log.Warn("fetch failed", logx.String("url", c.cfg.URL), logx.Err(out.err), logx.Bool("have_payload", c.hasText))

	if !c.hasText && !c.lastResort {
		c.lastResort = true
		if text, mod, err := c.file.read(); err == nil && valid(text) {
			c.text, c.hasText, c.modified = text, true, mod
		}
	}
	if c.hasText {
		return c.cached(), out.err
	}
	return Result{}, out.err
}

func (c *Cache) cached() Result {
	return Result{Text: c.text, FromCache: true, Stale: c.err != nil, Modified: c.modified}
}

func (c *Cache) store(text string) {
	now := c.now()
	c.text, c.hasText, c.modified = text, true, now
	c.err = nil
	c.lastResort = false
	c.gate.Arm(c.cfg.Refresh)
	if err := c.file.write(text); err != nil {
		c.log.Warn("cache file write failed", logx.String("path", c.file.path), logx.Err(err))
	}
}

// poll starts or resumes the single outstanding request.
func (c *Cache) poll(ctx context.Context, blocking bool) (outcome, bool) {
	if c.task == nil {
		c.start(ctx)
	}
	t := c.task

	if blocking {
		select {
		case out := <-t.done:
			c.task = nil
			return out, true
		case <-ctx.Done():
			c.Cancel()
			return outcome{err: &Error{Kind: ErrTransport, URL: c.cfg.URL, Err: ctx.Err()}}, true
		}
	}

	tick := time.NewTimer(c.cfg.PollTick)
	defer tick.Stop()
	select {
	case out := <-t.done:
		c.task = nil
		return out, true
	case <-tick.C:
		return outcome{}, false
	}
}

func (c *Cache) start(parent context.Context) {
	c.Cancel()
	// The request outlives a single non-blocking call, so it is bound to
	// its own timeout rather than the caller's tick.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.cfg.Timeout)
	t := &task{done: make(chan outcome, 1), cancel: cancel}
	c.task = t
	c.requests++

	req, err := c.newRequest(ctx)
	if err != nil {
		cancel()
		t.done <- outcome{err: &Error{Kind: ErrTransport, URL: c.cfg.URL, Err: err}}
		return
	}
	c.log.Debug("fetch started", logx.String("url", c.cfg.URL))
	go func() {
		defer cancel()
		text, err := c.do(req)
		t.done <- outcome{text: text, err: err}
	}()
}

func (c *Cache) newRequest(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	if len(c.cfg.Params) > 0 {
		q := u.Query()
		for k, v := range c.cfg.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	var body io.Reader
	method := strings.ToUpper(c.cfg.Method)
	if method != http.MethodGet && c.cfg.Body != "" {
		body = strings.NewReader(c.cfg.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Cache) do(req *http.Request) (string, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrTransport, URL: c.cfg.URL, Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(b))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return "", &Error{Kind: ErrTransport, URL: c.cfg.URL, Status: resp.StatusCode, Err: errors.New(snippet)}
	}
	if err != nil {
		return "", &Error{Kind: ErrTransport, URL: c.cfg.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(b), nil
}
