package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crowdwatch-api/internal/models"
	appErrors "github.com/noah-isme/crowdwatch-api/pkg/errors"
	"github.com/noah-isme/crowdwatch-api/pkg/logger"
	"github.com/noah-isme/crowdwatch-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// Authenticator resolves a bearer token to the claims of a live account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Authenticate protects routes by requiring a valid access token whose
// account is still active.
func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid Authorization format"))
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Abort(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.SubjectKey, claims.Subject)
		c.Next()
	}
}

// Claims returns the authenticated caller, or nil outside protected routes.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
