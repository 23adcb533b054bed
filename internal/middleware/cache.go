package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControl sets the Cache-Control header for responses, usually static
// assets. Uploads are stored under random names and never rewritten, so
// immutable is safe for them.
func CacheControl(maxAge time.Duration, immutable bool) gin.HandlerFunc {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	if immutable {
		value += ", immutable"
	}
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

// NoStore marks responses as uncacheable. Used on attempt endpoints where a
// stale clock or answer state would mislead the learner.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
