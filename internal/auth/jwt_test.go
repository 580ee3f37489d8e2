package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService("secret", 1)
	uid := uuid.New()

	tok, err := s.Generate(uid, "moderator")
	require.NoError(t, err)

	claims, err := s.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, "moderator", claims.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	s := NewJWTService("secret", 1)
	tok, err := s.Generate(uuid.New(), "member")
	require.NoError(t, err)

	_, err = NewJWTService("other", 1).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ExpiredAndForeignIssuer(t *testing.T) {
	s := NewJWTService("secret", 1)
	uid := uuid.New()
	tok, err := s.Generate(uid, "member")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	_, err = s.Validate(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   uid.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
