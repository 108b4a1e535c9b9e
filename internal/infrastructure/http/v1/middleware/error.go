package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/apperror"
	"docflow/internal/infrastructure/http/v1/dto"
	"docflow/pkg/logger"
)

// ErrorHandler renders the last error registered on the gin context as the
// failure envelope. Internal causes are logged, never sent.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		status := http.StatusInternalServerError
		body := dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Error:   "Internal server error",
			Details: map[string]any{"requestId": c.GetString(ctxRequestID)},
		}

		if appErr, ok := apperror.AsAppError(err); ok && appErr.HTTPStatus >= http.StatusBadRequest && appErr.HTTPStatus < http.StatusInternalServerError {
			status = appErr.HTTPStatus
			body.Code = appErr.Code
			body.Error = appErr.Message
			body.Details = appErr.Details
			if appErr.Err != nil {
				logger.Warn(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
			}
		} else {
			logger.Error(ctx, "request failed",
				"method", c.Request.Method,
				"route", c.FullPath(),
				"error", err)
		}

		if status >= http.StatusInternalServerError {
			releaseIdempotency(c)
		} else {
			failIdempotency(c, status, body)
		}
		c.JSON(status, body)
	}
}
