package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// RejectRevokedTokens refuses tokens that were invalidated through logout.
// It must run after one of the Require*JWT middlewares.
func RejectRevokedTokens(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.CheckNotRevoked(c.Request.Context(), claims); err != nil {
			if errors.Is(err, service.ErrTokenRevoked) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
				return
			}
			// Fail closed when the revocation list is unreachable.
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
			return
		}

		c.Next()
	}
}
