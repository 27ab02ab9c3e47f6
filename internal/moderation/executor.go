package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wardenhq.org/internal/engine"
	"wardenhq.org/internal/ids"
)

// Executor applies command side effects to the moderation records. One
// instance serves all communities; tenant checks happen per call.
type Executor struct {
	players PlayerStore
	actions ActionStore
	cases   CaseStore
	reports ReportStore
	now     func() time.Time
}

// NewExecutor wires the executor to its stores.
func NewExecutor(players PlayerStore, actions ActionStore, cases CaseStore, reports ReportStore) *Executor {
	return &Executor{
		players: players,
		actions: actions,
		cases:   cases,
		reports: reports,
		now:     time.Now,
	}
}

// WithClock overrides the time source for tests.
func (e *Executor) WithClock(fn func() time.Time) *Executor {
	if fn != nil {
		e.now = fn
	}
	return e
}

// Execute dispatches on the command id. Unknown ids are a wiring error: the
// registry and this switch must stay in lockstep.
func (e *Executor) Execute(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	switch in.CommandID {
	case "warning.create":
		return e.recordAction(ctx, in, ActionWarning, str(in.Payload["reason"]), nil, "Warning recorded.")
	case "kick.record":
		return e.recordAction(ctx, in, ActionKick, str(in.Payload["reason"]), nil, "Kick recorded.")
	case "note.add":
		return e.recordAction(ctx, in, ActionNote, str(in.Payload["note"]), nil, "Note added.")
	case "ban.temp":
		expires := e.now().UTC().Add(time.Duration(num(in.Payload["hours"])) * time.Hour)
		return e.recordAction(ctx, in, ActionBanTemp, str(in.Payload["reason"]), &expires,
			fmt.Sprintf("Temporary ban recorded until %s.", expires.Format(time.RFC3339)))
	case "ban.perm":
		return e.recordAction(ctx, in, ActionBanPerm, str(in.Payload["reason"]), nil, "Permanent ban recorded.")
	case "ban.extend":
		return e.extendBan(ctx, in)
	case "ban.remove":
		return e.removeBan(ctx, in)
	case "player.flag":
		return e.flagPlayer(ctx, in)
	case "case.from_report":
		return e.caseFromReport(ctx, in)
	case "case.assign":
		return e.assignCase(ctx, in)
	case "report.bulk_resolve":
		return e.bulkResolve(ctx, in)
	case "case.export_packet":
		return e.exportPacket(ctx, in)
	default:
		return engine.ExecResult{}, fmt.Errorf("moderation: no executor for command %q", in.CommandID)
	}
}

// player loads the target and enforces the tenant boundary.
func (e *Executor) player(ctx context.Context, communityID, playerID string) (Player, error) {
	p, err := e.players.Find(ctx, playerID)
	if err != nil {
		return Player{}, err
	}
	if p.CommunityID != communityID {
		return Player{}, ErrWrongCommunity
	}
	return p, nil
}

func (e *Executor) recordAction(ctx context.Context, in engine.ExecInput, typ ActionType, reason string, expiresAt *time.Time, msg string) (engine.ExecResult, error) {
	p, err := e.player(ctx, in.CommunityID, str(in.Payload["playerId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	action := Action{
		ID:              ids.New(),
		CommunityID:     in.CommunityID,
		PlayerID:        p.ID,
		Type:            typ,
		Reason:          reason,
		ModeratorUserID: in.ActorUserID,
		ExpiresAt:       expiresAt,
		CreatedAt:       e.now().UTC(),
	}
	if err := e.actions.Create(ctx, &action); err != nil {
		return engine.ExecResult{}, err
	}
	return engine.ExecResult{Message: msg}, nil
}

func (e *Executor) extendBan(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	p, err := e.player(ctx, in.CommunityID, str(in.Payload["playerId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	ban, found, err := e.actions.LatestActiveBan(ctx, in.CommunityID, p.ID, e.now().UTC())
	if err != nil {
		return engine.ExecResult{}, err
	}
	if !found {
		return engine.ExecResult{}, ErrNoActiveBan
	}
	if ban.ExpiresAt == nil {
		return engine.ExecResult{}, errors.New("moderation: permanent ban cannot be extended")
	}
	extended := ban.ExpiresAt.Add(time.Duration(num(in.Payload["hours"])) * time.Hour)
	if err := e.actions.SetExpiry(ctx, ban.ID, extended); err != nil {
		return engine.ExecResult{}, err
	}
	return engine.ExecResult{
		Message: fmt.Sprintf("Ban extended until %s.", extended.Format(time.RFC3339)),
	}, nil
}

func (e *Executor) removeBan(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	p, err := e.player(ctx, in.CommunityID, str(in.Payload["playerId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	ban, found, err := e.actions.LatestActiveBan(ctx, in.CommunityID, p.ID, e.now().UTC())
	if err != nil {
		return engine.ExecResult{}, err
	}
	if !found {
		return engine.ExecResult{}, ErrNoActiveBan
	}
	if err := e.actions.Revoke(ctx, ban.ID, e.now().UTC()); err != nil {
		return engine.ExecResult{}, err
	}
	return engine.ExecResult{Message: "Ban removed."}, nil
}

func (e *Executor) flagPlayer(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	p, err := e.player(ctx, in.CommunityID, str(in.Payload["playerId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	flag := str(in.Payload["flag"])
	if flag == "clear" {
		flag = ""
	}
	if err := e.players.SetFlag(ctx, p.ID, flag); err != nil {
		return engine.ExecResult{}, err
	}
	if flag == "" {
		return engine.ExecResult{Message: "Flag cleared."}, nil
	}
	return engine.ExecResult{Message: "Player flagged."}, nil
}

func (e *Executor) caseFromReport(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	report, err := e.reports.Find(ctx, in.CommunityID, str(in.Payload["reportId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	now := e.now().UTC()
	c := Case{
		ID:              ids.New(),
		CommunityID:     in.CommunityID,
		Title:           str(in.Payload["title"]),
		Status:          CaseOpen,
		ReportID:        report.ID,
		CreatedByUserID: in.ActorUserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.cases.Create(ctx, &c); err != nil {
		return engine.ExecResult{}, err
	}
	if err := e.reports.SetStatus(ctx, in.CommunityID, report.ID, ReportInReview); err != nil {
		return engine.ExecResult{}, err
	}
	return engine.ExecResult{
		Message:     "Case opened.",
		RedirectURL: "/app/cases/" + c.ID,
	}, nil
}

func (e *Executor) assignCase(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	c, err := e.cases.Find(ctx, in.CommunityID, str(in.Payload["caseId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	assignee := str(in.Payload["assigneeUserId"])
	if err := e.cases.SetAssignee(ctx, c.ID, assignee, e.now().UTC()); err != nil {
		return engine.ExecResult{}, err
	}
	return engine.ExecResult{Message: "Case assigned."}, nil
}

func (e *Executor) bulkResolve(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	idsList := strs(in.Payload["reportIds"])
	resolution := str(in.Payload["resolution"])
	now := e.now().UTC()
	resolved := 0
	for _, reportID := range idsList {
		if _, err := e.reports.Find(ctx, in.CommunityID, reportID); err != nil {
			return engine.ExecResult{}, fmt.Errorf("report %s: %w", reportID, err)
		}
		if err := e.reports.Resolve(ctx, in.CommunityID, reportID, resolution, in.ActorUserID, now); err != nil {
			return engine.ExecResult{}, err
		}
		resolved++
	}
	return engine.ExecResult{Message: fmt.Sprintf("%d reports resolved.", resolved)}, nil
}

func (e *Executor) exportPacket(ctx context.Context, in engine.ExecInput) (engine.ExecResult, error) {
	c, err := e.cases.Find(ctx, in.CommunityID, str(in.Payload["caseId"]))
	if err != nil {
		return engine.ExecResult{}, err
	}
	return engine.ExecResult{
		Message:     "Export ready.",
		RedirectURL: "/app/cases/" + c.ID + "/export",
	}, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := v.(float64)
	return f
}

// strs accepts both []string and the []any a JSON round-trip through a
// store produces.
func strs(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
