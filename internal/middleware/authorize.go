package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sharpms/dashboard/internal/models"
	"sharpms/dashboard/internal/rolegate"
)

// RequireRoles admits sessions whose primary role is one of roles. It
// runs behind Guard, so an absent user is unexpected.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := CurrentSnapshot(c)
		if snap.User == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !rolegate.Allow(snap.Role(), roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
