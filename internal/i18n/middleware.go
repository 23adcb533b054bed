package i18n

import "github.com/gin-gonic/gin"

// Middleware attaches a localizer chosen from the ?lang= query parameter or
// the Accept-Language header to every request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := NewLocalizer(c.Query("lang"), c.GetHeader("Accept-Language"))
		c.Request = c.Request.WithContext(WithLocalizer(c.Request.Context(), loc))
		c.Next()
	}
}
