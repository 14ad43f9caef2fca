package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderUserID carries the caller's account ID, set by the auth gateway.
	HeaderUserID = "X-User-ID"
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
)

// UserMiddleware copies the gateway supplied account ID into the Gin
// context. Anonymous requests pass through without one.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
			c.Set(ContextKeyUserID, id)
		}
		c.Next()
	}
}

// UserID returns the caller's account ID, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
