package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"workgenio/pkg/logger"
)

// Logger logs every request with status and latency.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		entry := logger.FromContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			entry.Warnw("http request", fields...)
			return
		}
		entry.Infow("http request", fields...)
	}
}
