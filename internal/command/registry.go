package command

import "wardenhq.org/internal/rbac"

func fptr(v float64) *float64 { return &v }

var playerField = Field{Name: "playerId", Label: "Player", Type: FieldText, Required: true}

var reasonField = Field{Name: "reason", Label: "Reason", Type: FieldTextarea, Required: true}

// Builtin returns the command catalog shipped with the engine.
func Builtin() *Registry {
	reg, err := NewRegistry([]Definition{
		{
			ID:                 "warning.create",
			Name:               "Issue warning",
			Description:        "Record a formal warning against a player.",
			RequiredPermission: rbac.PermActionsCreate,
			Risk:               RiskLow,
			Fields:             []Field{playerField, reasonField},
		},
		{
			ID:                 "kick.record",
			Name:               "Record kick",
			Description:        "Log that a player was kicked from the server.",
			RequiredPermission: rbac.PermActionsCreate,
			Risk:               RiskLow,
			Fields:             []Field{playerField, reasonField},
		},
		{
			ID:                 "ban.temp",
			Name:               "Temporary ban",
			Description:        "Ban a player for a limited number of hours.",
			RequiredPermission: rbac.PermBansCreate,
			Risk:               RiskHigh,
			Fields: []Field{
				playerField,
				reasonField,
				{Name: "hours", Label: "Duration (hours)", Type: FieldNumber, Required: true, Min: fptr(1), Max: fptr(720)},
			},
		},
		{
			ID:                 "ban.perm",
			Name:               "Permanent ban",
			Description:        "Ban a player with no expiry.",
			RequiredPermission: rbac.PermBansCreate,
			Risk:               RiskCritical,
			Fields:             []Field{playerField, reasonField},
		},
		{
			ID:                 "ban.extend",
			Name:               "Extend ban",
			Description:        "Extend an active temporary ban.",
			RequiredPermission: rbac.PermBansExtend,
			Risk:               RiskMedium,
			Fields: []Field{
				playerField,
				reasonField,
				{Name: "hours", Label: "Additional hours", Type: FieldNumber, Required: true, Min: fptr(1), Max: fptr(720)},
			},
		},
		{
			ID:                 "ban.remove",
			Name:               "Remove ban",
			Description:        "Lift an active ban early.",
			RequiredPermission: rbac.PermBansRemove,
			Risk:               RiskHigh,
			Fields:             []Field{playerField, reasonField},
		},
		{
			ID:                 "player.flag",
			Name:               "Flag player",
			Description:        "Mark a player record for staff attention.",
			RequiredPermission: rbac.PermPlayersFlag,
			Risk:               RiskLow,
			Fields: []Field{
				playerField,
				{Name: "flag", Label: "Flag", Type: FieldSelect, Required: true, Options: []Option{
					{Value: "watch", Label: "Watchlist"},
					{Value: "repeat", Label: "Repeat offender"},
					{Value: "clear", Label: "Clear flag"},
				}},
			},
		},
		{
			ID:                 "note.add",
			Name:               "Add note",
			Description:        "Attach an internal note to a player record.",
			RequiredPermission: rbac.PermActionsCreate,
			Risk:               RiskLow,
			Fields: []Field{
				playerField,
				{Name: "note", Label: "Note", Type: FieldTextarea, Required: true},
			},
		},
		{
			ID:                 "case.from_report",
			Name:               "Open case from report",
			Description:        "Promote a player report into a tracked case.",
			RequiredPermission: rbac.PermCasesCreate,
			Risk:               RiskMedium,
			Fields: []Field{
				{Name: "reportId", Label: "Report", Type: FieldText, Required: true},
				{Name: "title", Label: "Case title", Type: FieldText, Required: true},
			},
		},
		{
			ID:                 "case.assign",
			Name:               "Assign case",
			Description:        "Assign a case to a staff member.",
			RequiredPermission: rbac.PermCasesAssign,
			Risk:               RiskLow,
			Fields: []Field{
				{Name: "caseId", Label: "Case", Type: FieldText, Required: true},
				{Name: "assigneeUserId", Label: "Assignee", Type: FieldText, Required: true},
			},
		},
		{
			ID:                 "report.bulk_resolve",
			Name:               "Bulk resolve reports",
			Description:        "Resolve a batch of open reports at once.",
			RequiredPermission: rbac.PermReportsResolve,
			Risk:               RiskMedium,
			Fields: []Field{
				{Name: "reportIds", Label: "Reports", Type: FieldMulti, Required: true},
				{Name: "resolution", Label: "Resolution", Type: FieldTextarea, Required: true},
			},
		},
		{
			ID:                 "case.export_packet",
			Name:               "Export case packet",
			Description:        "Produce an evidence packet for a case.",
			RequiredPermission: rbac.PermCasesRead,
			Risk:               RiskLow,
			Fields: []Field{
				{Name: "caseId", Label: "Case", Type: FieldText, Required: true},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return reg
}
