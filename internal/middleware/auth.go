// internal/middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/furnigo/furnigo-api/internal/i18n"
	"github.com/furnigo/furnigo-api/internal/utils"
)

// ServiceRole is the role claim the auth provider puts on operator tokens.
const ServiceRole = "service_role"

func AuthRequired(verifier *utils.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthRequired))
			c.Abort()
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			key := i18n.KeyAuthInvalidToken
			if errors.Is(err, jwt.ErrTokenExpired) {
				key = i18n.KeyAuthTokenExpired
			}
			utils.UnauthorizedResponse(c, i18n.T(lang, key))
			c.Abort()
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

// ServiceRoleRequired admits only service-role tokens. It runs after
// AuthRequired.
func ServiceRoleRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("user_role") != ServiceRole {
			utils.ForbiddenResponse(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(verifier *utils.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.Next()
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

// Extract token from "Bearer <token>"
func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setUser(c *gin.Context, claims *utils.AccessClaims) {
	c.Set("user_uuid", claims.Subject)
	c.Set("user_email", claims.Email)
	c.Set("user_role", claims.Role)
}
