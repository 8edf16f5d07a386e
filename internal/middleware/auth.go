package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/auth-gateway/internal/service"
	appErrors "github.com/noah-isme/auth-gateway/pkg/errors"
	"github.com/noah-isme/auth-gateway/pkg/response"
)

// ContextUserKey is the gin context key storing session claims.
const ContextUserKey = "currentUser"

// Auth protects routes by requiring a valid bearer access token. An absent
// or malformed header is reported separately from a token that fails
// verification.
func Auth(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrMissingAccessToken, "missing Authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrMissingAccessToken, "invalid Authorization header format (must be 'Bearer <token>')"))
			c.Abort()
			return
		}

		claims, err := sessions.VerifyAccess(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}
