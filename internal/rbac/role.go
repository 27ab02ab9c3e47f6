package rbac

import (
	"fmt"
	"strings"
)

// Role is the single staff role a community membership carries.
type Role string

const (
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
	RoleMod      Role = "MOD"
	RoleTrialMod Role = "TRIAL_MOD"
	RoleViewer   Role = "VIEWER"
)

// rolePriority orders roles for tie-breaking and supervisor checks.
// Never mutated after init.
var rolePriority = map[Role]int{
	RoleOwner:    5,
	RoleAdmin:    4,
	RoleMod:      3,
	RoleTrialMod: 2,
	RoleViewer:   1,
}

// ParseRole normalizes a stored role value.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rolePriority[r]; !ok {
		return "", fmt.Errorf("rbac: unknown role %q", s)
	}
	return r, nil
}

// Priority returns the numeric rank of a role. Unknown roles are a
// programming error and panic.
func Priority(r Role) int {
	p, ok := rolePriority[r]
	if !ok {
		panic(fmt.Sprintf("rbac: unknown role %q", r))
	}
	return p
}

// IsSupervisor reports whether the role ranks at least ADMIN.
func IsSupervisor(r Role) bool {
	return Priority(r) >= Priority(RoleAdmin)
}

// HasRoleAtLeast reports whether current ranks at or above minimum.
func HasRoleAtLeast(current, minimum Role) bool {
	return Priority(current) >= Priority(minimum)
}

// CanGrantRole reports whether granter may hand out roleToGrant.
func CanGrantRole(granter, roleToGrant Role) bool {
	switch granter {
	case RoleOwner:
		return true
	case RoleAdmin:
		return roleToGrant != RoleOwner
	default:
		return false
	}
}

// CanManageRole reports whether actor may edit a member holding target.
func CanManageRole(actor, target Role) bool {
	switch actor {
	case RoleOwner:
		return true
	case RoleAdmin:
		return target != RoleOwner && Priority(target) <= Priority(RoleMod)
	default:
		return false
	}
}

// CanPerformModeration reports whether the role is a moderation role.
func CanPerformModeration(r Role) bool {
	return Priority(r) >= Priority(RoleTrialMod)
}
