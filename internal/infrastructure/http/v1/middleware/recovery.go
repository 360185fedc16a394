// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"workgenio/internal/core/apperror"
	"workgenio/pkg/logger"
)

// Recovery turns a panic into a 500 handled by ErrorHandler.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.For(c.Request.Context(), "http").Errorw("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", rec)))
				c.Abort()
			}
		}()
		c.Next()
	}
}
