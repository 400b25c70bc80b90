package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
	"github.com/noah-isme/crowdwatch-api/pkg/response"
)

// RequireAdmin allows only callers whose token carries the admin role.
// It must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if !claims.IsAdmin() {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
