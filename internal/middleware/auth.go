package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chatrelay/relay/internal/service"
	"github.com/gin-gonic/gin"
)

// RequireAuth validates the bearer credential (API key or dashboard JWT)
// and stores the resolved identity on the context.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Use: Bearer <token>",
			})
			c.Abort()
			return
		}

		identity, apiKey, err := authService.VerifyBearer(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			message := "Invalid or expired credentials"
			if errors.Is(err, service.ErrRevokedAPIKey) {
				message = "API key has been revoked. Please generate a new API key."
			}

			c.JSON(http.StatusUnauthorized, gin.H{
				"error": message,
			})
			c.Abort()
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("organization_id", identity.OrganizationID)
		if apiKey != nil {
			c.Set("api_key", apiKey)
		}

		c.Next()
	}
}

// RequireOrganization rejects callers whose credential is not bound to an
// organization. Organization management endpoints skip this.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("organization_id") == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Credential is not associated with an organization",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
