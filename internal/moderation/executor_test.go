package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wardenhq.org/internal/command"
	"wardenhq.org/internal/engine"
)

type memPlayers struct {
	players map[string]Player
}

func (m *memPlayers) Find(_ context.Context, id string) (Player, error) {
	p, ok := m.players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound
	}
	return p, nil
}

func (m *memPlayers) SetFlag(_ context.Context, id, flag string) error {
	p, ok := m.players[id]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Flag = flag
	m.players[id] = p
	return nil
}

type memActions struct {
	actions map[string]Action
}

func (m *memActions) Create(_ context.Context, a *Action) error {
	m.actions[a.ID] = *a
	return nil
}

func (m *memActions) LatestActiveBan(_ context.Context, communityID, playerID string, now time.Time) (Action, bool, error) {
	var best Action
	found := false
	for _, a := range m.actions {
		if a.CommunityID != communityID || a.PlayerID != playerID || !a.ActiveBan(now) {
			continue
		}
		if !found || a.CreatedAt.After(best.CreatedAt) {
			best, found = a, true
		}
	}
	return best, found, nil
}

func (m *memActions) SetExpiry(_ context.Context, actionID string, expiresAt time.Time) error {
	a, ok := m.actions[actionID]
	if !ok {
		return errors.New("action not found")
	}
	a.ExpiresAt = &expiresAt
	m.actions[actionID] = a
	return nil
}

func (m *memActions) Revoke(_ context.Context, actionID string, at time.Time) error {
	a, ok := m.actions[actionID]
	if !ok {
		return errors.New("action not found")
	}
	a.RevokedAt = &at
	m.actions[actionID] = a
	return nil
}

func (m *memActions) byType(typ ActionType) []Action {
	var out []Action
	for _, a := range m.actions {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

type memCases struct {
	cases map[string]Case
}

func (m *memCases) Create(_ context.Context, c *Case) error {
	m.cases[c.ID] = *c
	return nil
}

func (m *memCases) Find(_ context.Context, communityID, id string) (Case, error) {
	c, ok := m.cases[id]
	if !ok || c.CommunityID != communityID {
		return Case{}, ErrCaseNotFound
	}
	return c, nil
}

func (m *memCases) SetAssignee(_ context.Context, id, assigneeUserID string, at time.Time) error {
	c, ok := m.cases[id]
	if !ok {
		return ErrCaseNotFound
	}
	c.AssigneeUserID = assigneeUserID
	c.UpdatedAt = at
	m.cases[id] = c
	return nil
}

type memReports struct {
	reports map[string]Report
}

func (m *memReports) Find(_ context.Context, communityID, id string) (Report, error) {
	r, ok := m.reports[id]
	if !ok || r.CommunityID != communityID {
		return Report{}, ErrReportNotFound
	}
	return r, nil
}

func (m *memReports) Resolve(_ context.Context, communityID, id, resolution, resolvedBy string, at time.Time) error {
	r, ok := m.reports[id]
	if !ok || r.CommunityID != communityID {
		return ErrReportNotFound
	}
	r.Status = ReportResolved
	r.Resolution = resolution
	r.ResolvedByUserID = resolvedBy
	r.ResolvedAt = &at
	m.reports[id] = r
	return nil
}

func (m *memReports) SetStatus(_ context.Context, communityID, id string, status ReportStatus) error {
	r, ok := m.reports[id]
	if !ok || r.CommunityID != communityID {
		return ErrReportNotFound
	}
	r.Status = status
	m.reports[id] = r
	return nil
}

type fixture struct {
	exec    *Executor
	players *memPlayers
	actions *memActions
	cases   *memCases
	reports *memReports
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	players := &memPlayers{players: map[string]Player{
		"p1":      {ID: "p1", CommunityID: "c1", Name: "Slate"},
		"foreign": {ID: "foreign", CommunityID: "c2", Name: "Drift"},
	}}
	actions := &memActions{actions: map[string]Action{}}
	cases := &memCases{cases: map[string]Case{
		"case-1": {ID: "case-1", CommunityID: "c1", Title: "Griefing spree", Status: CaseOpen},
	}}
	reports := &memReports{reports: map[string]Report{
		"r1": {ID: "r1", CommunityID: "c1", Subject: "griefing", Status: ReportOpen},
		"r2": {ID: "r2", CommunityID: "c1", Subject: "slurs", Status: ReportOpen},
	}}
	exec := NewExecutor(players, actions, cases, reports).WithClock(func() time.Time { return now })
	return &fixture{exec: exec, players: players, actions: actions, cases: cases, reports: reports, now: now}
}

func run(t *testing.T, f *fixture, commandID string, payload command.Payload) engine.ExecResult {
	t.Helper()
	res, err := f.exec.Execute(context.Background(), engine.ExecInput{
		CommunityID: "c1",
		CommandID:   commandID,
		Payload:     payload,
		ActorUserID: "mod",
	})
	if err != nil {
		t.Fatalf("%s: %v", commandID, err)
	}
	return res
}

func TestWarningCreatesAction(t *testing.T) {
	f := newFixture(t)
	run(t, f, "warning.create", command.Payload{"playerId": "p1", "reason": "spamming chat"})

	warnings := f.actions.byType(ActionWarning)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(warnings))
	}
	w := warnings[0]
	if w.PlayerID != "p1" || w.ModeratorUserID != "mod" || w.Reason != "spamming chat" {
		t.Fatalf("warning = %+v", w)
	}
}

func TestTempBanSetsExpiry(t *testing.T) {
	f := newFixture(t)
	run(t, f, "ban.temp", command.Payload{"playerId": "p1", "reason": "ban evasion", "hours": float64(24)})

	bans := f.actions.byType(ActionBanTemp)
	if len(bans) != 1 {
		t.Fatalf("bans = %d, want 1", len(bans))
	}
	want := f.now.Add(24 * time.Hour)
	if bans[0].ExpiresAt == nil || !bans[0].ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", bans[0].ExpiresAt, want)
	}
	if !bans[0].ActiveBan(f.now) {
		t.Fatal("fresh temp ban should be active")
	}
}

func TestPermBanHasNoExpiry(t *testing.T) {
	f := newFixture(t)
	run(t, f, "ban.perm", command.Payload{"playerId": "p1", "reason": "repeated abuse"})

	bans := f.actions.byType(ActionBanPerm)
	if len(bans) != 1 || bans[0].ExpiresAt != nil {
		t.Fatalf("bans = %+v, want one with nil expiry", bans)
	}
}

func TestExtendBan(t *testing.T) {
	f := newFixture(t)
	run(t, f, "ban.temp", command.Payload{"playerId": "p1", "reason": "ban evasion", "hours": float64(24)})
	run(t, f, "ban.extend", command.Payload{"playerId": "p1", "reason": "continued evasion", "hours": float64(12)})

	bans := f.actions.byType(ActionBanTemp)
	want := f.now.Add(36 * time.Hour)
	if bans[0].ExpiresAt == nil || !bans[0].ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", bans[0].ExpiresAt, want)
	}
}

func TestExtendWithoutActiveBan(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Execute(context.Background(), engine.ExecInput{
		CommunityID: "c1", CommandID: "ban.extend",
		Payload:     command.Payload{"playerId": "p1", "reason": "x", "hours": float64(12)},
		ActorUserID: "mod",
	})
	if !errors.Is(err, ErrNoActiveBan) {
		t.Fatalf("err = %v, want ErrNoActiveBan", err)
	}
}

func TestRemoveBanRevokes(t *testing.T) {
	f := newFixture(t)
	run(t, f, "ban.temp", command.Payload{"playerId": "p1", "reason": "ban evasion", "hours": float64(24)})
	run(t, f, "ban.remove", command.Payload{"playerId": "p1", "reason": "appeal accepted"})

	bans := f.actions.byType(ActionBanTemp)
	if bans[0].RevokedAt == nil {
		t.Fatal("ban should be revoked")
	}
	if bans[0].ActiveBan(f.now) {
		t.Fatal("revoked ban must not be active")
	}
}

func TestFlagAndClear(t *testing.T) {
	f := newFixture(t)
	run(t, f, "player.flag", command.Payload{"playerId": "p1", "flag": "watch"})
	if f.players.players["p1"].Flag != "watch" {
		t.Fatalf("flag = %q, want watch", f.players.players["p1"].Flag)
	}
	run(t, f, "player.flag", command.Payload{"playerId": "p1", "flag": "clear"})
	if f.players.players["p1"].Flag != "" {
		t.Fatalf("flag = %q, want empty", f.players.players["p1"].Flag)
	}
}

func TestWrongCommunityIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Execute(context.Background(), engine.ExecInput{
		CommunityID: "c1", CommandID: "warning.create",
		Payload:     command.Payload{"playerId": "foreign", "reason": "x"},
		ActorUserID: "mod",
	})
	if !errors.Is(err, ErrWrongCommunity) {
		t.Fatalf("err = %v, want ErrWrongCommunity", err)
	}
}

func TestCaseFromReport(t *testing.T) {
	f := newFixture(t)
	res := run(t, f, "case.from_report", command.Payload{"reportId": "r1", "title": "Griefing at spawn"})

	if !strings.HasPrefix(res.RedirectURL, "/app/cases/") {
		t.Fatalf("redirect = %q", res.RedirectURL)
	}
	if f.reports.reports["r1"].Status != ReportInReview {
		t.Fatalf("report status = %s, want IN_REVIEW", f.reports.reports["r1"].Status)
	}
	found := false
	for _, c := range f.cases.cases {
		if c.ReportID == "r1" && c.Status == CaseOpen && c.Title == "Griefing at spawn" {
			found = true
		}
	}
	if !found {
		t.Fatal("case was not created from the report")
	}
}

func TestAssignCase(t *testing.T) {
	f := newFixture(t)
	run(t, f, "case.assign", command.Payload{"caseId": "case-1", "assigneeUserId": "mod2"})
	if f.cases.cases["case-1"].AssigneeUserID != "mod2" {
		t.Fatalf("assignee = %q, want mod2", f.cases.cases["case-1"].AssigneeUserID)
	}
}

func TestBulkResolve(t *testing.T) {
	f := newFixture(t)
	res := run(t, f, "report.bulk_resolve", command.Payload{
		"reportIds":  []string{"r1", "r2"},
		"resolution": "duplicate of case-1",
	})
	if res.Message != "2 reports resolved." {
		t.Fatalf("message = %q", res.Message)
	}
	for _, id := range []string{"r1", "r2"} {
		if f.reports.reports[id].Status != ReportResolved {
			t.Fatalf("report %s status = %s, want RESOLVED", id, f.reports.reports[id].Status)
		}
	}
}

func TestBulkResolveAcceptsDecodedJSONList(t *testing.T) {
	// Payloads that crossed a JSON column come back with []any list fields.
	f := newFixture(t)
	res := run(t, f, "report.bulk_resolve", command.Payload{
		"reportIds":  []any{"r1", "r2"},
		"resolution": "handled",
	})
	if res.Message != "2 reports resolved." {
		t.Fatalf("message = %q", res.Message)
	}
	for _, id := range []string{"r1", "r2"} {
		if f.reports.reports[id].Status != ReportResolved {
			t.Fatalf("report %s status = %s, want RESOLVED", id, f.reports.reports[id].Status)
		}
	}
}

func TestBulkResolveUnknownReportFailsWhole(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Execute(context.Background(), engine.ExecInput{
		CommunityID: "c1", CommandID: "report.bulk_resolve",
		Payload:     command.Payload{"reportIds": []string{"r1", "missing"}, "resolution": "x"},
		ActorUserID: "mod",
	})
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
}

func TestExportPacketRedirect(t *testing.T) {
	f := newFixture(t)
	res := run(t, f, "case.export_packet", command.Payload{"caseId": "case-1"})
	if res.RedirectURL != "/app/cases/case-1/export" {
		t.Fatalf("redirect = %q", res.RedirectURL)
	}
}
