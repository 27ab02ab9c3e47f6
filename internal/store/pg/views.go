package pg

import (
	"context"
	"time"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
	"wardenhq.org/internal/moderation"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
)

// The store exposes one narrow view per consumer interface. The views are
// value types over the shared *Store; they carry no state of their own.

type Memberships struct{ s *Store }

func (s *Store) Memberships() Memberships { return Memberships{s} }

var _ rbac.MembershipStore = Memberships{}

func (v Memberships) Find(ctx context.Context, communityID, userID string) (rbac.Membership, error) {
	return v.s.FindMembership(ctx, communityID, userID)
}

func (v Memberships) Upsert(ctx context.Context, m *rbac.Membership) error {
	return v.s.UpsertMembership(ctx, m)
}

type Toggles struct{ s *Store }

func (s *Store) Toggles() Toggles { return Toggles{s} }

var _ command.ToggleStore = Toggles{}

func (v Toggles) Find(ctx context.Context, communityID, commandID string) (command.Toggle, error) {
	return v.s.FindToggle(ctx, communityID, commandID)
}

func (v Toggles) Set(ctx context.Context, t command.Toggle) error { return v.s.SetToggle(ctx, t) }

func (v Toggles) List(ctx context.Context, communityID string) ([]command.Toggle, error) {
	return v.s.ListToggles(ctx, communityID)
}

type Settings struct{ s *Store }

func (s *Store) Settings() Settings { return Settings{s} }

var _ security.SettingsStore = Settings{}

func (v Settings) Find(ctx context.Context, communityID string) (security.Settings, error) {
	return v.s.FindSettings(ctx, communityID)
}

func (v Settings) Save(ctx context.Context, rec security.Settings) error {
	return v.s.SaveSettings(ctx, rec)
}

type Grants struct{ s *Store }

func (s *Store) Grants() Grants { return Grants{s} }

var _ security.SensitiveGrantStore = Grants{}

func (v Grants) Find(ctx context.Context, sessionToken string) (security.SensitiveGrant, error) {
	return v.s.FindGrant(ctx, sessionToken)
}

func (v Grants) Save(ctx context.Context, g security.SensitiveGrant) error {
	return v.s.SaveGrant(ctx, g)
}

func (v Grants) Delete(ctx context.Context, sessionToken string) error {
	return v.s.DeleteGrant(ctx, sessionToken)
}

type Approvals struct{ s *Store }

func (s *Store) Approvals() Approvals { return Approvals{s} }

var _ approval.Store = Approvals{}

func (v Approvals) Create(ctx context.Context, r *approval.Request) error {
	return v.s.CreateApproval(ctx, r)
}

func (v Approvals) Find(ctx context.Context, id string) (approval.Request, error) {
	return v.s.FindApproval(ctx, id)
}

func (v Approvals) CompareAndResolve(ctx context.Context, id string, to approval.Status, resolvedBy string, at time.Time) (bool, error) {
	return v.s.CompareAndResolve(ctx, id, to, resolvedBy, at)
}

func (v Approvals) ListPending(ctx context.Context, communityID string) ([]approval.Request, error) {
	return v.s.ListPendingApprovals(ctx, communityID)
}

func (v Approvals) RecentPendingSince(ctx context.Context, communityID, userID string, since time.Time) (approval.Request, bool, error) {
	return v.s.RecentPendingSince(ctx, communityID, userID, since)
}

func (v Approvals) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]approval.Request, error) {
	return v.s.ExpiredPending(ctx, now, limit)
}

type Calls struct{ s *Store }

func (s *Store) Calls() Calls { return Calls{s} }

var _ dispatch.Store = Calls{}

func (v Calls) Create(ctx context.Context, c *dispatch.Call) error { return v.s.CreateCall(ctx, c) }

func (v Calls) Find(ctx context.Context, communityID, id string) (dispatch.Call, error) {
	return v.s.FindCall(ctx, communityID, id)
}

func (v Calls) List(ctx context.Context, communityID string, status dispatch.CallStatus, limit int) ([]dispatch.Call, error) {
	return v.s.ListCalls(ctx, communityID, status, limit)
}

func (v Calls) CompareAndSetStatus(ctx context.Context, id string, from, to dispatch.CallStatus, at time.Time) (bool, error) {
	return v.s.CompareAndSetStatus(ctx, id, from, to, at)
}

type Audit struct{ s *Store }

func (s *Store) Audit() Audit { return Audit{s} }

var _ audit.Store = Audit{}

func (v Audit) Append(ctx context.Context, e *audit.Entry) error { return v.s.AppendAudit(ctx, e) }

func (v Audit) LastCommandExecution(ctx context.Context, communityID, userID string, risk command.RiskLevel) (time.Time, bool, error) {
	return v.s.LastCommandExecution(ctx, communityID, userID, risk)
}

func (v Audit) List(ctx context.Context, communityID string, limit int) ([]audit.Entry, error) {
	return v.s.ListAudit(ctx, communityID, limit)
}

type Players struct{ s *Store }

func (s *Store) Players() Players { return Players{s} }

var _ moderation.PlayerStore = Players{}

func (v Players) Find(ctx context.Context, id string) (moderation.Player, error) {
	return v.s.FindPlayer(ctx, id)
}

func (v Players) SetFlag(ctx context.Context, id, flag string) error {
	return v.s.SetPlayerFlag(ctx, id, flag)
}

type Actions struct{ s *Store }

func (s *Store) Actions() Actions { return Actions{s} }

var _ moderation.ActionStore = Actions{}

func (v Actions) Create(ctx context.Context, a *moderation.Action) error {
	return v.s.CreateAction(ctx, a)
}

func (v Actions) LatestActiveBan(ctx context.Context, communityID, playerID string, now time.Time) (moderation.Action, bool, error) {
	return v.s.LatestActiveBan(ctx, communityID, playerID, now)
}

func (v Actions) SetExpiry(ctx context.Context, actionID string, expiresAt time.Time) error {
	return v.s.SetActionExpiry(ctx, actionID, expiresAt)
}

func (v Actions) Revoke(ctx context.Context, actionID string, at time.Time) error {
	return v.s.RevokeAction(ctx, actionID, at)
}

type Cases struct{ s *Store }

func (s *Store) Cases() Cases { return Cases{s} }

var _ moderation.CaseStore = Cases{}

func (v Cases) Create(ctx context.Context, c *moderation.Case) error { return v.s.CreateCase(ctx, c) }

func (v Cases) Find(ctx context.Context, communityID, id string) (moderation.Case, error) {
	return v.s.FindCase(ctx, communityID, id)
}

func (v Cases) SetAssignee(ctx context.Context, id, assigneeUserID string, at time.Time) error {
	return v.s.SetCaseAssignee(ctx, id, assigneeUserID, at)
}

type Reports struct{ s *Store }

func (s *Store) Reports() Reports { return Reports{s} }

var _ moderation.ReportStore = Reports{}

func (v Reports) Find(ctx context.Context, communityID, id string) (moderation.Report, error) {
	return v.s.FindReport(ctx, communityID, id)
}

func (v Reports) Resolve(ctx context.Context, communityID, id, resolution, resolvedBy string, at time.Time) error {
	return v.s.ResolveReport(ctx, communityID, id, resolution, resolvedBy, at)
}

func (v Reports) SetStatus(ctx context.Context, communityID, id string, status moderation.ReportStatus) error {
	return v.s.SetReportStatus(ctx, communityID, id, status)
}
