package control

import (
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
)

const pprofPrefix = "/debug/pprof"

// PprofConfig mounts the runtime profiler under /debug/pprof on the control
// server.
//
// Security: on a non-loopback address a Token is required unless
// AllowInsecure is set.
type PprofConfig struct {
	Enabled       bool
	Token         string
	AllowInsecure bool

	MutexProfileFraction int
	BlockProfileRate     int
}

var errInsecurePprof = errors.New("pprof on a non-loopback address requires a token or allow_insecure")

// mountPprof registers the profiler routes on r. The profiling rates are
// applied even when the routes are not mounted.
func mountPprof(r *gin.Engine, addr string, cfg PprofConfig) error {
	applyRuntimeRates(cfg)
	if !cfg.Enabled {
		return nil
	}
	if !cfg.AllowInsecure && cfg.Token == "" && !isLoopbackAddr(addr) {
		return errInsecurePprof
	}
	g := r.Group(pprofPrefix, tokenAuth(cfg.Token))
	g.GET("/", gin.WrapF(hpprof.Index))
	g.GET("/cmdline", gin.WrapF(hpprof.Cmdline))
	g.GET("/profile", gin.WrapF(hpprof.Profile))
	g.GET("/symbol", gin.WrapF(hpprof.Symbol))
	g.POST("/symbol", gin.WrapF(hpprof.Symbol))
	g.GET("/trace", gin.WrapF(hpprof.Trace))
	// Named profiles (heap, goroutine, ...) go through Index, which
	// resolves them from the path.
	g.GET("/:profile", gin.WrapF(hpprof.Index))
	return nil
}

func applyRuntimeRates(cfg PprofConfig) {
	if cfg.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	}
	if cfg.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	}
}

// tokenAuth accepts "Authorization: Bearer <token>" or ?token=<token>. An
// empty token lets everything through.
func tokenAuth(token string) gin.HandlerFunc {
	tok := strings.TrimSpace(token)
	return func(c *gin.Context) {
		if tok == "" {
			c.Next()
			return
		}
		if got := c.Query("token"); got != "" {
			if got == tok {
				c.Next()
				return
			}
			unauthorized(c)
			return
		}
		const p = "Bearer "
		if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			c.Next()
			return
		}
		unauthorized(c)
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
