package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Session resolves the acting user from the X-User-Id header set by the
// gateway. Identity verification happens upstream; requests without a
// user id are rejected before they reach a handler.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}

		c.Set("userID", userID)
		if name := strings.TrimSpace(c.GetHeader("X-User-Name")); name != "" {
			c.Set("userName", name)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id stored by Session.
func UserID(c *gin.Context) string {
	value, _ := c.Get("userID")
	id, _ := value.(string)
	return id
}

// UserName returns the display name forwarded by the gateway, falling
// back to the user id when none was provided.
func UserName(c *gin.Context) string {
	value, ok := c.Get("userName")
	if ok {
		if name, _ := value.(string); name != "" {
			return name
		}
	}
	return UserID(c)
}
