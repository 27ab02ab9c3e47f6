// Package memory provides mutex-guarded in-memory implementations of every
// store interface. They back tests and the standalone dev mode; the pg
// package is the production counterpart.
package memory

import (
	"context"
	"sync"
	"time"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
	"wardenhq.org/internal/moderation"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
)

// Memberships is an in-memory rbac.MembershipStore.
type Memberships struct {
	mu      sync.RWMutex
	records map[string]rbac.Membership
}

func NewMemberships() *Memberships {
	return &Memberships{records: map[string]rbac.Membership{}}
}

func memberKey(communityID, userID string) string { return communityID + "\x00" + userID }

func (s *Memberships) Find(_ context.Context, communityID, userID string) (rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.records[memberKey(communityID, userID)]
	if !ok {
		return rbac.Membership{}, rbac.ErrMembershipNotFound
	}
	return m, nil
}

func (s *Memberships) Upsert(_ context.Context, m *rbac.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[memberKey(m.CommunityID, m.UserID)] = *m
	return nil
}

// Toggles is an in-memory command.ToggleStore.
type Toggles struct {
	mu      sync.RWMutex
	records map[string]command.Toggle
}

func NewToggles() *Toggles { return &Toggles{records: map[string]command.Toggle{}} }

func (s *Toggles) Find(_ context.Context, communityID, commandID string) (command.Toggle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.records[memberKey(communityID, commandID)]
	if !ok {
		return command.Toggle{}, command.ErrToggleNotFound
	}
	return t, nil
}

func (s *Toggles) Set(_ context.Context, t command.Toggle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[memberKey(t.CommunityID, t.CommandID)] = t
	return nil
}

func (s *Toggles) List(_ context.Context, communityID string) ([]command.Toggle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []command.Toggle
	for _, t := range s.records {
		if t.CommunityID == communityID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Settings is an in-memory security.SettingsStore.
type Settings struct {
	mu      sync.RWMutex
	records map[string]security.Settings
}

func NewSettings() *Settings { return &Settings{records: map[string]security.Settings{}} }

func (s *Settings) Find(_ context.Context, communityID string) (security.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[communityID]
	if !ok {
		return security.Settings{}, security.ErrSettingsNotFound
	}
	return rec, nil
}

func (s *Settings) Save(_ context.Context, rec security.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CommunityID] = rec
	return nil
}

// Grants is an in-memory security.SensitiveGrantStore.
type Grants struct {
	mu      sync.RWMutex
	records map[string]security.SensitiveGrant
}

func NewGrants() *Grants { return &Grants{records: map[string]security.SensitiveGrant{}} }

func (s *Grants) Find(_ context.Context, sessionToken string) (security.SensitiveGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.records[sessionToken]
	if !ok {
		return security.SensitiveGrant{}, security.ErrGrantNotFound
	}
	return g, nil
}

func (s *Grants) Save(_ context.Context, g security.SensitiveGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[g.SessionToken] = g
	return nil
}

func (s *Grants) Delete(_ context.Context, sessionToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionToken)
	return nil
}

// Approvals is an in-memory approval.Store. The compare-and-swap holds the
// write lock across the read and the write, giving the same atomicity as the
// conditional UPDATE in pg.
type Approvals struct {
	mu      sync.Mutex
	records map[string]approval.Request
}

func NewApprovals() *Approvals { return &Approvals{records: map[string]approval.Request{}} }

func (s *Approvals) Create(_ context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = *r
	return nil
}

func (s *Approvals) Find(_ context.Context, id string) (approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return approval.Request{}, approval.ErrNotFound
	}
	return r, nil
}

func (s *Approvals) CompareAndResolve(_ context.Context, id string, to approval.Status, resolvedBy string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Status != approval.StatusPending {
		return false, nil
	}
	r.Status = to
	r.ResolvedByUserID = resolvedBy
	r.ResolvedAt = &at
	s.records[id] = r
	return true, nil
}

func (s *Approvals) ListPending(_ context.Context, communityID string) ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []approval.Request
	for _, r := range s.records {
		if r.CommunityID == communityID && r.Status == approval.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Approvals) RecentPendingSince(_ context.Context, communityID, userID string, since time.Time) (approval.Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest approval.Request
	found := false
	for _, r := range s.records {
		if r.CommunityID != communityID || r.RequestedByUserID != userID ||
			r.Status != approval.StatusPending || r.CreatedAt.Before(since) {
			continue
		}
		if !found || r.CreatedAt.After(newest.CreatedAt) {
			newest, found = r, true
		}
	}
	return newest, found, nil
}

func (s *Approvals) ExpiredPending(_ context.Context, now time.Time, limit int) ([]approval.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []approval.Request
	for _, r := range s.records {
		if r.Status == approval.StatusPending && r.ExpiresAt.Before(now) {
			out = append(out, r)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Calls is an in-memory dispatch.Store.
type Calls struct {
	mu      sync.Mutex
	records map[string]dispatch.Call
	order   []string
}

func NewCalls() *Calls { return &Calls{records: map[string]dispatch.Call{}} }

func (s *Calls) Create(_ context.Context, c *dispatch.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.ID] = *c
	s.order = append(s.order, c.ID)
	return nil
}

func (s *Calls) Find(_ context.Context, communityID, id string) (dispatch.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.CommunityID != communityID {
		return dispatch.Call{}, dispatch.ErrCallNotFound
	}
	return c, nil
}

func (s *Calls) List(_ context.Context, communityID string, status dispatch.CallStatus, limit int) ([]dispatch.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dispatch.Call, 0, limit)
	// newest first
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		c := s.records[s.order[i]]
		if c.CommunityID != communityID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Calls) CompareAndSetStatus(_ context.Context, id string, from, to dispatch.CallStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	s.records[id] = c
	return true, nil
}

// Audit is an in-memory audit.Store. Append-only; entries are never mutated.
type Audit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func NewAudit() *Audit { return &Audit{} }

func (s *Audit) Append(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *Audit) LastCommandExecution(_ context.Context, communityID, userID string, risk command.RiskLevel) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.EventType == audit.EventCommandExecuted && e.CommunityID == communityID &&
			e.UserID == userID && e.Risk == risk {
			return e.CreatedAt, true, nil
		}
	}
	return time.Time{}, false, nil
}

func (s *Audit) List(_ context.Context, communityID string, limit int) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].CommunityID == communityID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// Players is an in-memory moderation.PlayerStore.
type Players struct {
	mu      sync.RWMutex
	records map[string]moderation.Player
}

func NewPlayers() *Players { return &Players{records: map[string]moderation.Player{}} }

func (s *Players) Put(p moderation.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[p.ID] = p
}

func (s *Players) Find(_ context.Context, id string) (moderation.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[id]
	if !ok {
		return moderation.Player{}, moderation.ErrPlayerNotFound
	}
	return p, nil
}

func (s *Players) SetFlag(_ context.Context, id, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return moderation.ErrPlayerNotFound
	}
	p.Flag = flag
	s.records[id] = p
	return nil
}

// Actions is an in-memory moderation.ActionStore.
type Actions struct {
	mu      sync.Mutex
	records map[string]moderation.Action
}

func NewActions() *Actions { return &Actions{records: map[string]moderation.Action{}} }

func (s *Actions) Create(_ context.Context, a *moderation.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.ID] = *a
	return nil
}

func (s *Actions) LatestActiveBan(_ context.Context, communityID, playerID string, now time.Time) (moderation.Action, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best moderation.Action
	found := false
	for _, a := range s.records {
		if a.CommunityID != communityID || a.PlayerID != playerID || !a.ActiveBan(now) {
			continue
		}
		if !found || a.CreatedAt.After(best.CreatedAt) {
			best, found = a, true
		}
	}
	return best, found, nil
}

func (s *Actions) SetExpiry(_ context.Context, actionID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[actionID]
	if !ok {
		return moderation.ErrNoActiveBan
	}
	a.ExpiresAt = &expiresAt
	s.records[actionID] = a
	return nil
}

func (s *Actions) Revoke(_ context.Context, actionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[actionID]
	if !ok {
		return moderation.ErrNoActiveBan
	}
	a.RevokedAt = &at
	s.records[actionID] = a
	return nil
}

// Cases is an in-memory moderation.CaseStore.
type Cases struct {
	mu      sync.Mutex
	records map[string]moderation.Case
}

func NewCases() *Cases { return &Cases{records: map[string]moderation.Case{}} }

func (s *Cases) Create(_ context.Context, c *moderation.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.ID] = *c
	return nil
}

func (s *Cases) Find(_ context.Context, communityID, id string) (moderation.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.CommunityID != communityID {
		return moderation.Case{}, moderation.ErrCaseNotFound
	}
	return c, nil
}

func (s *Cases) SetAssignee(_ context.Context, id, assigneeUserID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return moderation.ErrCaseNotFound
	}
	c.AssigneeUserID = assigneeUserID
	c.UpdatedAt = at
	s.records[id] = c
	return nil
}

// Reports is an in-memory moderation.ReportStore.
type Reports struct {
	mu      sync.Mutex
	records map[string]moderation.Report
}

func NewReports() *Reports { return &Reports{records: map[string]moderation.Report{}} }

func (s *Reports) Put(r moderation.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

func (s *Reports) Find(_ context.Context, communityID, id string) (moderation.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.CommunityID != communityID {
		return moderation.Report{}, moderation.ErrReportNotFound
	}
	return r, nil
}

func (s *Reports) Resolve(_ context.Context, communityID, id, resolution, resolvedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.CommunityID != communityID {
		return moderation.ErrReportNotFound
	}
	r.Status = moderation.ReportResolved
	r.Resolution = resolution
	r.ResolvedByUserID = resolvedBy
	r.ResolvedAt = &at
	s.records[id] = r
	return nil
}

func (s *Reports) SetStatus(_ context.Context, communityID, id string, status moderation.ReportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.CommunityID != communityID {
		return moderation.ErrReportNotFound
	}
	r.Status = status
	s.records[id] = r
	return nil
}
