package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/model"
	"github.com/stemsi/elearn-backend/internal/response"
)

// RequireRole checks that the authenticated user has one of the given roles.
// It must run after RequireAuth or RequireWSAuth.
func RequireRole(denied response.ErrCode, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, denied)
	}
}

// RequireStudent admits learners only.
func RequireStudent() gin.HandlerFunc {
	return RequireRole(response.ErrStudentAccessOnly, model.RoleStudent)
}

// RequireAdmin admits administrators only.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(response.ErrAdminAccessOnly, model.RoleAdmin)
}
