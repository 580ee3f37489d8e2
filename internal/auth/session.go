package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/models"
	"github.com/aura-community/backend/internal/permissions"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrBanned           = errors.New("account is banned")
)

// Session is the authenticated actor of a request.
type Session struct {
	UserID uuid.UUID
	Role   permissions.Role
	User   *models.User
}

// UserGetter loads a user by id.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionResolver turns a bearer token into a Session. The role and ban state come
// from the database on every call, so role changes and bans apply to live tokens.
type SessionResolver struct {
	jwt   *JWTService
	users UserGetter
}

// NewSessionResolver creates a resolver.
func NewSessionResolver(jwt *JWTService, users UserGetter) *SessionResolver {
	return &SessionResolver{jwt: jwt, users: users}
}

// Resolve validates token and loads its member.
func (r *SessionResolver) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := r.jwt.Validate(token)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	user, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if user.IsBanned() {
		return nil, ErrBanned
	}
	if !user.Role.Valid() {
		return nil, ErrNotAuthenticated
	}
	return &Session{UserID: user.ID, Role: user.Role, User: user}, nil
}
