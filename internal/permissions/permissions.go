package permissions

// CanManageRole reports whether an actor may act on a member holding target:
// both roles must be valid, the owner is never a target, and the actor must rank strictly higher.
func CanManageRole(actor, target Role) bool {
	if !actor.Valid() || !target.Valid() {
		return false
	}
	if target == RoleOwner {
		return false
	}
	return actor.Level() > target.Level()
}

// CanModerateContent reports whether r may edit or delete other members' content.
func CanModerateContent(r Role) bool {
	return r.AtLeast(RoleModerator)
}

// CanManageMembers reports whether r may ban members and change roles.
func CanManageMembers(r Role) bool {
	return r.AtLeast(RoleAdmin)
}

// CanEditSettings reports whether r may change community settings, events and courses.
func CanEditSettings(r Role) bool {
	return r.AtLeast(RoleAdmin)
}

// MaxAssignableRole returns the highest role strictly below actor.
// The second result is false when actor cannot assign any role.
func MaxAssignableRole(actor Role) (Role, bool) {
	if !actor.Valid() || actor == RoleMember {
		return RoleNone, false
	}
	return actor - 1, true
}

// AssignableRoles lists the roles actor may hand out, lowest first.
func AssignableRoles(actor Role) []Role {
	top, ok := MaxAssignableRole(actor)
	if !ok {
		return nil
	}
	var out []Role
	for _, r := range AllRoles() {
		if r.Level() <= top.Level() {
			out = append(out, r)
		}
	}
	return out
}

// CanAssignRole reports whether actor may move a member from current to next.
func CanAssignRole(actor, current, next Role) bool {
	if !CanManageRole(actor, current) || !next.Valid() {
		return false
	}
	top, ok := MaxAssignableRole(actor)
	return ok && next.Level() <= top.Level()
}

// CanManageRoleString is CanManageRole for unparsed role names. Unknown names fail closed.
func CanManageRoleString(actor, target string) bool {
	return CanManageRole(ParseRole(actor), ParseRole(target))
}

// CanModerateContentString is CanModerateContent for an unparsed role name.
func CanModerateContentString(role string) bool {
	return CanModerateContent(ParseRole(role))
}

// CanManageMembersString is CanManageMembers for an unparsed role name.
func CanManageMembersString(role string) bool {
	return CanManageMembers(ParseRole(role))
}

// CanEditSettingsString is CanEditSettings for an unparsed role name.
func CanEditSettingsString(role string) bool {
	return CanEditSettings(ParseRole(role))
}

// MaxAssignableRoleString returns the role name, or "" when nothing can be assigned.
func MaxAssignableRoleString(actor string) string {
	r, ok := MaxAssignableRole(ParseRole(actor))
	if !ok {
		return ""
	}
	return r.String()
}
