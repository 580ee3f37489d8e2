package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = auth.ContextUserID
	// ContextUserRole is the key for the permissions.Role in gin context.
	ContextUserRole = "user_role"
	// ContextSession is the key for the resolved *auth.Session.
	ContextSession = "session"
)

// SessionResolver resolves a bearer token to the current member.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Session, error)
}

// Auth returns a middleware that resolves the bearer token and sets the actor in context.
func Auth(resolver SessionResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.AbortUnauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.AbortUnauthorized(c, "invalid authorization header")
			return
		}
		s, err := resolver.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrBanned):
				response.AbortForbidden(c, auth.ErrBanned.Error())
			case errors.Is(err, auth.ErrNotAuthenticated):
				response.AbortUnauthorized(c, "invalid or expired token")
			default:
				logger.Error("resolve session", zap.Error(err))
				response.Internal(c, "failed to resolve session")
				c.Abort()
			}
			return
		}
		c.Set(ContextUserID, s.UserID)
		c.Set(ContextUserRole, s.Role)
		c.Set(ContextSession, s)
		c.Next()
	}
}

// Actor returns the authenticated member's id and role. It panics outside Auth.
func Actor(c *gin.Context) (uuid.UUID, permissions.Role) {
	return c.MustGet(ContextUserID).(uuid.UUID), c.MustGet(ContextUserRole).(permissions.Role)
}

// CurrentActor is Actor packaged for service calls.
func CurrentActor(c *gin.Context) permissions.Actor {
	id, role := Actor(c)
	return permissions.Actor{ID: id, Role: role}
}
