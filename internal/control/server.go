// Package control is the HTTP side door into the render loop. It accepts
// event records and queues them on the bus inbox; it never touches module
// state directly.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"smartmirror/internal/eventbus"
	logx "smartmirror/pkg/logx"
)

const (
	defaultAddr            = "127.0.0.1:8080"
	defaultShutdownTimeout = 5 * time.Second
	maxBodyBytes           = 64 << 10
)

type Config struct {
	Addr            string
	RatePerSec      float64 // <= 0 disables rate limiting
	Burst           int
	ShutdownTimeout time.Duration
	Debug           bool
	Pprof           PprofConfig
}

// Server is the control HTTP server.
type Server struct {
	router  *gin.Engine
	server  *http.Server
	inbox   *eventbus.Inbox
	limiter *rate.Limiter
	health  func() any
	log     logx.Logger
	cfg     Config
}

// NewServer wires routes for inbox. gatherer, when non-nil, is served on
// /metrics; health, when non-nil, is merged into /healthz.
func NewServer(cfg Config, inbox *eventbus.Inbox, gatherer prometheus.Gatherer, health func() any, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		inbox:   inbox,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		health:  health,
		log:     log.With(logx.String("comp", "control")),
		cfg:     cfg,
	}

	router := gin.New()
	router.Use(recoveryMiddleware(s.log))
	router.Use(loggerMiddleware(s.log))
	router.POST("/event", s.postEvent)
	router.GET("/healthz", s.getHealth)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	if err := mountPprof(router, cfg.Addr, cfg.Pprof); err != nil {
		s.log.Error("pprof refused", logx.String("addr", cfg.Addr), logx.Err(err))
	}
	s.router = router
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("control listen %s: %w", s.cfg.Addr, err)
	}
	s.log.Info("control server listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control shutdown: %w", err)
	}
	s.log.Info("control server stopped")
	return nil
}

// postEvent queues one JSON object carrying an "event" field.
func (s *Server) postEvent(c *gin.Context) {
	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var rec map[string]any
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}
	kind, _ := rec[eventbus.KindField].(string)
	if strings.TrimSpace(kind) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": `missing "event" field`})
		return
	}
	if !s.inbox.Offer(rec) {
		s.log.Warn("event queue full", logx.String("event", kind), logx.Int("capacity", s.inbox.Cap()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue full"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

func (s *Server) getHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "queued": s.inbox.Len()}
	if s.health != nil {
		body["runtime"] = s.health()
	}
	c.JSON(http.StatusOK, body)
}
