package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "workgenio/internal/core/context"
	"workgenio/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace attaches request and trace ids to the request context, reusing the
// caller's headers when present, and a logger carrying them.
func Trace(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := appctx.NewTraceContext(appctx.OriginHTTP, c.GetHeader(HeaderRequestID), c.GetHeader(HeaderTraceID))

		ctx := appctx.WithTrace(c.Request.Context(), tc)
		if log != nil {
			ctx = logger.WithLogger(ctx, log)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()
	}
}
