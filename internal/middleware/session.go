package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/response"
	"github.com/stemsi/elearn-backend/internal/service"
)

// checkSession validates the JWT's JTI against the live token in Redis.
// If the JTI doesn't match, the request is aborted (a newer login or an
// admin action replaced the session).
func checkSession(c *gin.Context, authService *service.AuthService, claims *service.Claims) bool {
	err := authService.ValidateSession(c.Request.Context(), claims.UserID, claims.ID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, service.ErrSessionRevoked):
		response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
	default:
		_ = c.Error(err)
		response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
	}
	return false
}
