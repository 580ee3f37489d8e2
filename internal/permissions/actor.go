package permissions

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNotAuthorized is returned when an actor lacks the capability for an action.
var ErrNotAuthorized = errors.New("not authorized")

// Actor is the member performing an action.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Require returns ErrNotAuthorized unless allowed(a.Role) holds.
func (a Actor) Require(allowed func(Role) bool) error {
	if !allowed(a.Role) {
		return ErrNotAuthorized
	}
	return nil
}
