package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "docflow/internal/core/context"
)

// Identity headers set by the upstream gateway.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// Actor copies the caller identity forwarded by the gateway into the
// request context, where audit enrichment and logging read it.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := &appctx.Actor{
			UserID:    c.GetHeader(HeaderUserID),
			Email:     c.GetHeader(HeaderUserEmail),
			Name:      c.GetHeader(HeaderUserName),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
