package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

// RequireCapability allows the request only when allowed(role) holds for the actor.
func RequireCapability(allowed func(permissions.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.AbortUnauthorized(c, "not authenticated")
			return
		}
		role, _ := roleVal.(permissions.Role)
		if !allowed(role) {
			response.AbortForbidden(c, "not authorized")
			return
		}
		c.Next()
	}
}

// RequireRole allows the actor when its role ranks at or above min.
func RequireRole(min permissions.Role) gin.HandlerFunc {
	return RequireCapability(func(r permissions.Role) bool { return r.AtLeast(min) })
}
