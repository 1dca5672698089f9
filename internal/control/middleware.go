package control

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	logx "smartmirror/pkg/logx"
)

// loggerMiddleware logs one line per request. Health and metrics scrapes
// are logged at debug level.
func loggerMiddleware(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("duration", time.Since(start)),
			logx.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logx.Strs("errors", c.Errors.Errors()))
		}
		switch {
		case strings.HasPrefix(path, "/healthz"), strings.HasPrefix(path, "/metrics"):
			log.Debug("http request", fields...)
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

func recoveryMiddleware(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("http handler panicked",
					logx.String("path", c.Request.URL.Path),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
