// Package permissions maps the community role hierarchy to capability checks.
// Every function is total: an unrecognised role has no capabilities.
package permissions

import "fmt"

// Role is a community role. Roles are totally ordered; the zero value is RoleNone.
type Role uint8

const (
	RoleNone Role = iota
	RoleMember
	RoleModerator
	RoleAdmin
	RoleOwner
)

var roleNames = map[Role]string{
	RoleMember:    "member",
	RoleModerator: "moderator",
	RoleAdmin:     "admin",
	RoleOwner:     "owner",
}

var rolesByName = map[string]Role{
	"member":    RoleMember,
	"moderator": RoleModerator,
	"admin":     RoleAdmin,
	"owner":     RoleOwner,
}

// ParseRole returns the role named s, or RoleNone when s is not a known role.
func ParseRole(s string) Role {
	return rolesByName[s]
}

// AllRoles returns the valid roles from lowest to highest.
func AllRoles() []Role {
	return []Role{RoleMember, RoleModerator, RoleAdmin, RoleOwner}
}

// Valid reports whether r is one of the four community roles.
func (r Role) Valid() bool {
	return r >= RoleMember && r <= RoleOwner
}

// Level is the position of r in the hierarchy (member=1 … owner=4); 0 for invalid roles.
func (r Role) Level() int {
	if !r.Valid() {
		return 0
	}
	return int(r)
}

// Compare returns -1, 0 or 1 when r is lower than, equal to or higher than other.
// Invalid roles sort below every valid role.
func (r Role) Compare(other Role) int {
	a, b := r.Level(), other.Level()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is valid and ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Level() >= min.Level()
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "none"
}

// MarshalText encodes the role name; invalid roles cannot be encoded.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	role := ParseRole(string(b))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", string(b))
	}
	*r = role
	return nil
}
