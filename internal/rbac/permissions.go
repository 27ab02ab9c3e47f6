package rbac

// Permission is a fine-grained capability key.
type Permission string

const (
	PermUsersRead     Permission = "users:read"
	PermUsersInvite   Permission = "users:invite"
	PermUsersEditRole Permission = "users:edit_role"
	PermUsersDisable  Permission = "users:disable"

	PermPlayersRead Permission = "players:read"
	PermPlayersEdit Permission = "players:edit"
	PermPlayersFlag Permission = "players:flag"

	PermActionsCreate     Permission = "actions:create"
	PermActionsRevoke     Permission = "actions:revoke"
	PermActionsEditReason Permission = "actions:edit_reason"

	PermBansCreate Permission = "bans:create"
	PermBansExtend Permission = "bans:extend"
	PermBansRemove Permission = "bans:remove"

	PermCasesRead    Permission = "cases:read"
	PermCasesCreate  Permission = "cases:create"
	PermCasesAssign  Permission = "cases:assign"
	PermCasesClose   Permission = "cases:close"
	PermCasesComment Permission = "cases:comment"

	PermReportsRead    Permission = "reports:read"
	PermReportsTriage  Permission = "reports:triage"
	PermReportsResolve Permission = "reports:resolve"

	PermAuditRead    Permission = "audit:read"
	PermSecurityRead Permission = "security:read"
	PermSettingsEdit Permission = "settings:edit"

	PermCommandsRun     Permission = "commands:run"
	PermCommandsManage  Permission = "commands:manage"
	PermApprovalsDecide Permission = "approvals:decide"

	PermViewsManage   Permission = "views:manage"
	PermAPIKeysManage Permission = "api_keys:manage"

	PermDispatchRead   Permission = "dispatch:read"
	PermDispatchManage Permission = "dispatch:manage"
)

var viewerPerms = []Permission{
	PermPlayersRead,
	PermCasesRead,
	PermReportsRead,
}

var trialModPerms = append(clonePerms(viewerPerms),
	PermPlayersEdit,
	PermActionsCreate,
	PermBansCreate,
	PermReportsTriage,
	PermCasesComment,
	PermCommandsRun,
	PermViewsManage,
	PermDispatchRead,
)

var modPerms = append(clonePerms(trialModPerms),
	PermPlayersFlag,
	PermCasesCreate,
	PermCasesAssign,
	PermReportsResolve,
	PermBansExtend,
	PermDispatchManage,
)

var adminPerms = append(clonePerms(modPerms),
	PermUsersRead,
	PermUsersInvite,
	PermUsersEditRole,
	PermActionsRevoke,
	PermBansRemove,
	PermAuditRead,
	PermSecurityRead,
	PermSettingsEdit,
	PermCommandsManage,
	PermApprovalsDecide,
)

var ownerPerms = append(clonePerms(adminPerms),
	PermUsersDisable,
	PermAPIKeysManage,
)

// rolePermissions is the fixed role -> capability table. Built once at
// package init and read-only afterwards.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleViewer:   permSet(viewerPerms),
	RoleTrialMod: permSet(trialModPerms),
	RoleMod:      permSet(modPerms),
	RoleAdmin:    permSet(adminPerms),
	RoleOwner:    permSet(ownerPerms),
}

// HasPermission reports whether the role owns the capability. Pure lookup,
// no hidden state; unknown roles panic.
func HasPermission(r Role, p Permission) bool {
	set, ok := rolePermissions[r]
	if !ok {
		panic("rbac: unknown role " + string(r))
	}
	_, ok = set[p]
	return ok
}

// PermissionsFor returns a copy of the role's capability set.
func PermissionsFor(r Role) map[Permission]struct{} {
	set, ok := rolePermissions[r]
	if !ok {
		panic("rbac: unknown role " + string(r))
	}
	out := make(map[Permission]struct{}, len(set))
	for p := range set {
		out[p] = struct{}{}
	}
	return out
}

func clonePerms(perms []Permission) []Permission {
	out := make([]Permission, len(perms), len(perms)+16)
	copy(out, perms)
	return out
}

func permSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
