package middleware

import (
	"net/http"
	"strings"

	"signalbroker/internal/core/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware gates the admin HTTP surface behind a bearer token. The
// admin surface is read-only operational data (health/stats/config), so
// there is nothing to authorize beyond "is this a valid admin token."
func AuthMiddleware(authService *services.AdminAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
