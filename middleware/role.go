package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const RoleAdmin = "admin"

// HasRole reports whether the authenticated caller carries one of roles.
func HasRole(c *gin.Context, roles ...string) bool {
	role := c.GetString("role")
	if role == "" {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole rejects callers whose token role is not one of roles. It must
// run after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasRole(c, roles...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}
