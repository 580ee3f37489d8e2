package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-community/backend/internal/permissions"
)

// User represents a community member.
type User struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	Password  string           `json:"-"`
	FullName  string           `json:"full_name"`
	Bio       string           `json:"bio"`
	AvatarURL string           `json:"avatar_url,omitempty"`
	AvatarKey string           `json:"-"`
	Locale    string           `json:"locale,omitempty"`
	Role      permissions.Role `json:"role"`
	Points    int              `json:"points"`
	Level     int              `json:"level"`
	BannedAt  *time.Time       `json:"banned_at,omitempty"`
	BanReason string           `json:"ban_reason,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsBanned reports whether the member is currently banned.
func (u *User) IsBanned() bool {
	return u.BannedAt != nil
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID        `json:"id"`
	FullName  string           `json:"full_name"`
	Bio       string           `json:"bio"`
	AvatarURL string           `json:"avatar_url,omitempty"`
	Role      permissions.Role `json:"role"`
	Points    int              `json:"points"`
	Level     int              `json:"level"`
	Banned    bool             `json:"banned"`
	CreatedAt time.Time        `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		FullName:  u.FullName,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		Points:    u.Points,
		Level:     u.Level,
		Banned:    u.IsBanned(),
		CreatedAt: u.CreatedAt,
	}
}
