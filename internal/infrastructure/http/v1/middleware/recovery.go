// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"docflow/internal/core/apperror"
	"docflow/pkg/logger"
)

// Recovery turns a panic into a 500 rendered by ErrorHandler.
// The stack and the route go to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			logger.Error(ctx, "panic recovered",
				"method", c.Request.Method,
				"route", c.FullPath(),
				"error", rec,
				"stack", string(debug.Stack()),
			)

			_ = c.Error(apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", c.Request.Method, c.FullPath(), rec)))
			c.Abort()
		}()
		c.Next()
	}
}
