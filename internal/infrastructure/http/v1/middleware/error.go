package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workgenio/internal/core/apperror"
	appctx "workgenio/internal/core/context"
	"workgenio/internal/infrastructure/http/v1/dto"
	"workgenio/pkg/logger"
)

// ErrorHandler turns the last error registered on the context into a JSON body.
// Internal causes are logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.For(ctx, "http").Errorw("request error", "code", appErr.Code, "cause", appErr.Err)
			}
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
				Code:      appErr.Code,
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: appctx.RequestID(ctx),
			})
			return
		}

		logger.For(ctx, "http").Errorw("unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Code:      apperror.CodeInternal,
			Message:   "Internal server error",
			RequestID: appctx.RequestID(ctx),
		})
	}
}
