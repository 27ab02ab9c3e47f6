// Package pg persists all engine state in Postgres through the stdlib
// database/sql interface with the pgx driver. The two compare-and-swap
// writes (approval resolution, dispatch status) rely on conditional UPDATE
// row counts for atomicity rather than explicit locks.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
	"wardenhq.org/internal/moderation"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle; used by tests with sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- memberships ---

func (s *Store) FindMembership(ctx context.Context, communityID, userID string) (rbac.Membership, error) {
	m := rbac.Membership{CommunityID: communityID, UserID: userID}
	var role string
	var disabled sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select role, disabled_at, created_at
		from memberships where community_id=$1 and user_id=$2
	`, communityID, userID).Scan(&role, &disabled, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Membership{}, rbac.ErrMembershipNotFound
	}
	if err != nil {
		return rbac.Membership{}, err
	}
	m.Role, err = rbac.ParseRole(role)
	if err != nil {
		return rbac.Membership{}, err
	}
	if disabled.Valid {
		t := disabled.Time
		m.DisabledAt = &t
	}
	return m, nil
}

func (s *Store) UpsertMembership(ctx context.Context, m *rbac.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		insert into memberships(community_id, user_id, role, disabled_at, created_at)
		values ($1,$2,$3,$4,$5)
		on conflict (community_id, user_id) do update
		set role = excluded.role, disabled_at = excluded.disabled_at
	`, m.CommunityID, m.UserID, string(m.Role), m.DisabledAt, m.CreatedAt)
	return err
}

// --- command toggles ---

func (s *Store) FindToggle(ctx context.Context, communityID, commandID string) (command.Toggle, error) {
	t := command.Toggle{CommunityID: communityID, CommandID: commandID}
	err := s.db.QueryRowContext(ctx, `
		select enabled, updated_by, updated_at
		from command_toggles where community_id=$1 and command_id=$2
	`, communityID, commandID).Scan(&t.Enabled, &t.UpdatedBy, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return command.Toggle{}, command.ErrToggleNotFound
	}
	if err != nil {
		return command.Toggle{}, err
	}
	return t, nil
}

func (s *Store) SetToggle(ctx context.Context, t command.Toggle) error {
	_, err := s.db.ExecContext(ctx, `
		insert into command_toggles(community_id, command_id, enabled, updated_by, updated_at)
		values ($1,$2,$3,$4,$5)
		on conflict (community_id, command_id) do update
		set enabled = excluded.enabled, updated_by = excluded.updated_by, updated_at = excluded.updated_at
	`, t.CommunityID, t.CommandID, t.Enabled, t.UpdatedBy, t.UpdatedAt)
	return err
}

func (s *Store) ListToggles(ctx context.Context, communityID string) ([]command.Toggle, error) {
	rows, err := s.db.QueryContext(ctx, `
		select command_id, enabled, updated_by, updated_at
		from command_toggles where community_id=$1 order by command_id
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []command.Toggle
	for rows.Next() {
		t := command.Toggle{CommunityID: communityID}
		if err := rows.Scan(&t.CommandID, &t.Enabled, &t.UpdatedBy, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- security settings ---

func (s *Store) FindSettings(ctx context.Context, communityID string) (security.Settings, error) {
	rec := security.Settings{CommunityID: communityID}
	var threshold string
	err := s.db.QueryRowContext(ctx, `
		select require_2fa_privileged, two_person_rule, require_sensitive_mode,
		       sensitive_mode_ttl_minutes, high_risk_cooldown_seconds, approval_ttl_minutes,
		       auto_freeze_enabled, auto_freeze_threshold,
		       lockout_max_attempts, lockout_window_minutes, lockout_duration_minutes
		from security_settings where community_id=$1
	`, communityID).Scan(
		&rec.Require2FAForPrivileged, &rec.TwoPersonRule, &rec.RequireSensitiveModeForHighRisk,
		&rec.SensitiveModeTTLMinutes, &rec.HighRiskCommandCooldownSeconds, &rec.ApprovalTTLMinutes,
		&rec.AutoFreezeEnabled, &threshold,
		&rec.LockoutMaxAttempts, &rec.LockoutWindowMinutes, &rec.LockoutDurationMinutes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return security.Settings{}, security.ErrSettingsNotFound
	}
	if err != nil {
		return security.Settings{}, err
	}
	rec.AutoFreezeThreshold, err = command.ParseRiskLevel(threshold)
	if err != nil {
		return security.Settings{}, err
	}
	return rec, nil
}

func (s *Store) SaveSettings(ctx context.Context, rec security.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		insert into security_settings(
			community_id, require_2fa_privileged, two_person_rule, require_sensitive_mode,
			sensitive_mode_ttl_minutes, high_risk_cooldown_seconds, approval_ttl_minutes,
			auto_freeze_enabled, auto_freeze_threshold,
			lockout_max_attempts, lockout_window_minutes, lockout_duration_minutes)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		on conflict (community_id) do update set
			require_2fa_privileged = excluded.require_2fa_privileged,
			two_person_rule = excluded.two_person_rule,
			require_sensitive_mode = excluded.require_sensitive_mode,
			sensitive_mode_ttl_minutes = excluded.sensitive_mode_ttl_minutes,
			high_risk_cooldown_seconds = excluded.high_risk_cooldown_seconds,
			approval_ttl_minutes = excluded.approval_ttl_minutes,
			auto_freeze_enabled = excluded.auto_freeze_enabled,
			auto_freeze_threshold = excluded.auto_freeze_threshold,
			lockout_max_attempts = excluded.lockout_max_attempts,
			lockout_window_minutes = excluded.lockout_window_minutes,
			lockout_duration_minutes = excluded.lockout_duration_minutes
	`, rec.CommunityID, rec.Require2FAForPrivileged, rec.TwoPersonRule, rec.RequireSensitiveModeForHighRisk,
		rec.SensitiveModeTTLMinutes, rec.HighRiskCommandCooldownSeconds, rec.ApprovalTTLMinutes,
		rec.AutoFreezeEnabled, string(rec.AutoFreezeThreshold),
		rec.LockoutMaxAttempts, rec.LockoutWindowMinutes, rec.LockoutDurationMinutes)
	return err
}

// --- sensitive grants ---

func (s *Store) FindGrant(ctx context.Context, sessionToken string) (security.SensitiveGrant, error) {
	g := security.SensitiveGrant{SessionToken: sessionToken}
	err := s.db.QueryRowContext(ctx, `
		select user_id, created_at, expires_at
		from sensitive_grants where session_token=$1
	`, sessionToken).Scan(&g.UserID, &g.CreatedAt, &g.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return security.SensitiveGrant{}, security.ErrGrantNotFound
	}
	if err != nil {
		return security.SensitiveGrant{}, err
	}
	return g, nil
}

func (s *Store) SaveGrant(ctx context.Context, g security.SensitiveGrant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sensitive_grants(session_token, user_id, created_at, expires_at)
		values ($1,$2,$3,$4)
		on conflict (session_token) do update
		set expires_at = excluded.expires_at
	`, g.SessionToken, g.UserID, g.CreatedAt, g.ExpiresAt)
	return err
}

func (s *Store) DeleteGrant(ctx context.Context, sessionToken string) error {
	_, err := s.db.ExecContext(ctx, `delete from sensitive_grants where session_token=$1`, sessionToken)
	return err
}

// --- approval requests ---

func (s *Store) CreateApproval(ctx context.Context, r *approval.Request) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into approval_requests(
			id, community_id, command_id, risk, payload, requested_by, status, created_at, expires_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, r.ID, r.CommunityID, r.CommandID, string(r.Risk), payload, r.RequestedByUserID,
		string(r.Status), r.CreatedAt, r.ExpiresAt)
	return err
}

const approvalColumns = `
	id, community_id, command_id, risk, payload, requested_by, status,
	created_at, expires_at, coalesce(resolved_by,''), resolved_at`

func scanApproval(scan func(dest ...any) error) (approval.Request, error) {
	var r approval.Request
	var risk, status string
	var payload []byte
	var resolvedAt sql.NullTime
	err := scan(&r.ID, &r.CommunityID, &r.CommandID, &risk, &payload, &r.RequestedByUserID,
		&status, &r.CreatedAt, &r.ExpiresAt, &r.ResolvedByUserID, &resolvedAt)
	if err != nil {
		return approval.Request{}, err
	}
	r.Risk = command.RiskLevel(risk)
	r.Status = approval.Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &r.Payload); err != nil {
			return approval.Request{}, err
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return r, nil
}

func (s *Store) FindApproval(ctx context.Context, id string) (approval.Request, error) {
	row := s.db.QueryRowContext(ctx, `select `+approvalColumns+` from approval_requests where id=$1`, id)
	r, err := scanApproval(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Request{}, approval.ErrNotFound
	}
	return r, err
}

func (s *Store) CompareAndResolve(ctx context.Context, id string, to approval.Status, resolvedBy string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update approval_requests
		set status=$2, resolved_by=nullif($3,''), resolved_at=$4
		where id=$1 and status='PENDING'
	`, id, string(to), resolvedBy, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListPendingApprovals(ctx context.Context, communityID string) ([]approval.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+approvalColumns+` from approval_requests
		where community_id=$1 and status='PENDING'
		order by created_at desc
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []approval.Request
	for rows.Next() {
		r, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RecentPendingSince(ctx context.Context, communityID, userID string, since time.Time) (approval.Request, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+approvalColumns+` from approval_requests
		where community_id=$1 and requested_by=$2 and status='PENDING' and created_at >= $3
		order by created_at desc limit 1
	`, communityID, userID, since)
	r, err := scanApproval(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return approval.Request{}, false, nil
	}
	if err != nil {
		return approval.Request{}, false, err
	}
	return r, true, nil
}

func (s *Store) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]approval.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+approvalColumns+` from approval_requests
		where status='PENDING' and expires_at < $1
		order by expires_at asc limit $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []approval.Request
	for rows.Next() {
		r, err := scanApproval(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- dispatch calls ---

func (s *Store) CreateCall(ctx context.Context, c *dispatch.Call) error {
	units, err := json.Marshal(c.AssignedUnitIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into dispatch_calls(
			id, community_id, title, priority, status, location_name,
			assigned_unit_ids, created_by, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, c.ID, c.CommunityID, c.Title, c.Priority, string(c.Status), c.LocationName,
		units, c.CreatedByUserID, c.CreatedAt, c.UpdatedAt)
	return err
}

func scanCall(scan func(dest ...any) error) (dispatch.Call, error) {
	var c dispatch.Call
	var status string
	var units []byte
	err := scan(&c.ID, &c.CommunityID, &c.Title, &c.Priority, &status, &c.LocationName,
		&units, &c.CreatedByUserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return dispatch.Call{}, err
	}
	c.Status = dispatch.CallStatus(status)
	if len(units) > 0 {
		if err := json.Unmarshal(units, &c.AssignedUnitIDs); err != nil {
			return dispatch.Call{}, err
		}
	}
	return c, nil
}

const callColumns = `
	id, community_id, title, priority, status, location_name,
	assigned_unit_ids, created_by, created_at, updated_at`

func (s *Store) FindCall(ctx context.Context, communityID, id string) (dispatch.Call, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+callColumns+` from dispatch_calls where community_id=$1 and id=$2
	`, communityID, id)
	c, err := scanCall(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Call{}, dispatch.ErrCallNotFound
	}
	return c, err
}

func (s *Store) ListCalls(ctx context.Context, communityID string, status dispatch.CallStatus, limit int) ([]dispatch.Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+callColumns+` from dispatch_calls
		where community_id=$1 and ($2 = '' or status = $2)
		order by created_at desc limit $3
	`, communityID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dispatch.Call
	for rows.Next() {
		c, err := scanCall(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id string, from, to dispatch.CallStatus, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update dispatch_calls set status=$3, updated_at=$4
		where id=$1 and status=$2
	`, id, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// --- audit log ---

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log(
			id, community_id, user_id, event_type, target_id, risk, ip, user_agent, created_at, metadata)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.CommunityID, e.UserID, e.EventType, e.TargetID, string(e.Risk),
		e.IP, e.UserAgent, e.CreatedAt, meta)
	if err != nil {
		return audit.ErrUnavailable
	}
	return nil
}

func (s *Store) LastCommandExecution(ctx context.Context, communityID, userID string, risk command.RiskLevel) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		select created_at from audit_log
		where community_id=$1 and user_id=$2 and event_type=$3 and risk=$4
		order by created_at desc limit 1
	`, communityID, userID, audit.EventCommandExecuted, string(risk)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (s *Store) ListAudit(ctx context.Context, communityID string, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, community_id, user_id, event_type, target_id, risk, ip, user_agent, created_at, metadata
		from audit_log where community_id=$1
		order by created_at desc limit $2
	`, communityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var risk string
		var meta []byte
		if err := rows.Scan(&e.ID, &e.CommunityID, &e.UserID, &e.EventType, &e.TargetID,
			&risk, &e.IP, &e.UserAgent, &e.CreatedAt, &meta); err != nil {
			return nil, err
		}
		e.Risk = command.RiskLevel(risk)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- players, actions, cases, reports ---

func (s *Store) FindPlayer(ctx context.Context, id string) (moderation.Player, error) {
	p := moderation.Player{ID: id}
	err := s.db.QueryRowContext(ctx, `
		select community_id, name, coalesce(flag,''), created_at from players where id=$1
	`, id).Scan(&p.CommunityID, &p.Name, &p.Flag, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return moderation.Player{}, moderation.ErrPlayerNotFound
	}
	if err != nil {
		return moderation.Player{}, err
	}
	return p, nil
}

func (s *Store) SetPlayerFlag(ctx context.Context, id, flag string) error {
	res, err := s.db.ExecContext(ctx, `update players set flag=nullif($2,'') where id=$1`, id, flag)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return moderation.ErrPlayerNotFound
	}
	return nil
}

func (s *Store) CreateAction(ctx context.Context, a *moderation.Action) error {
	_, err := s.db.ExecContext(ctx, `
		insert into actions(
			id, community_id, player_id, type, reason, moderator_user_id, expires_at, revoked_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.CommunityID, a.PlayerID, string(a.Type), a.Reason, a.ModeratorUserID,
		a.ExpiresAt, a.RevokedAt, a.CreatedAt)
	return err
}

func (s *Store) LatestActiveBan(ctx context.Context, communityID, playerID string, now time.Time) (moderation.Action, bool, error) {
	var a moderation.Action
	var typ string
	var expires, revoked sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select id, community_id, player_id, type, reason, moderator_user_id, expires_at, revoked_at, created_at
		from actions
		where community_id=$1 and player_id=$2
		  and type in ('BAN_TEMP','BAN_PERM')
		  and revoked_at is null
		  and (expires_at is null or expires_at > $3)
		order by created_at desc limit 1
	`, communityID, playerID, now).Scan(&a.ID, &a.CommunityID, &a.PlayerID, &typ,
		&a.Reason, &a.ModeratorUserID, &expires, &revoked, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return moderation.Action{}, false, nil
	}
	if err != nil {
		return moderation.Action{}, false, err
	}
	a.Type = moderation.ActionType(typ)
	if expires.Valid {
		t := expires.Time
		a.ExpiresAt = &t
	}
	if revoked.Valid {
		t := revoked.Time
		a.RevokedAt = &t
	}
	return a, true, nil
}

func (s *Store) SetActionExpiry(ctx context.Context, actionID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `update actions set expires_at=$2 where id=$1`, actionID, expiresAt)
	return err
}

func (s *Store) RevokeAction(ctx context.Context, actionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `update actions set revoked_at=$2 where id=$1`, actionID, at)
	return err
}

func (s *Store) CreateCase(ctx context.Context, c *moderation.Case) error {
	_, err := s.db.ExecContext(ctx, `
		insert into cases(
			id, community_id, title, status, report_id, assignee_user_id, created_by_user_id, created_at, updated_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,$8,$9)
	`, c.ID, c.CommunityID, c.Title, string(c.Status), c.ReportID, c.AssigneeUserID,
		c.CreatedByUserID, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) FindCase(ctx context.Context, communityID, id string) (moderation.Case, error) {
	var c moderation.Case
	var status string
	err := s.db.QueryRowContext(ctx, `
		select id, community_id, title, status, coalesce(report_id,''), coalesce(assignee_user_id,''),
		       created_by_user_id, created_at, updated_at
		from cases where community_id=$1 and id=$2
	`, communityID, id).Scan(&c.ID, &c.CommunityID, &c.Title, &status, &c.ReportID,
		&c.AssigneeUserID, &c.CreatedByUserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return moderation.Case{}, moderation.ErrCaseNotFound
	}
	if err != nil {
		return moderation.Case{}, err
	}
	c.Status = moderation.CaseStatus(status)
	return c, nil
}

func (s *Store) SetCaseAssignee(ctx context.Context, id, assigneeUserID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update cases set assignee_user_id=nullif($2,''), updated_at=$3 where id=$1
	`, id, assigneeUserID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return moderation.ErrCaseNotFound
	}
	return nil
}

func (s *Store) FindReport(ctx context.Context, communityID, id string) (moderation.Report, error) {
	var r moderation.Report
	var status string
	var resolvedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select id, community_id, subject, status, coalesce(resolution,''), coalesce(resolved_by_user_id,''),
		       resolved_at, created_at
		from reports where community_id=$1 and id=$2
	`, communityID, id).Scan(&r.ID, &r.CommunityID, &r.Subject, &status, &r.Resolution,
		&r.ResolvedByUserID, &resolvedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return moderation.Report{}, moderation.ErrReportNotFound
	}
	if err != nil {
		return moderation.Report{}, err
	}
	r.Status = moderation.ReportStatus(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}
	return r, nil
}

func (s *Store) ResolveReport(ctx context.Context, communityID, id, resolution, resolvedBy string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update reports set status='RESOLVED', resolution=$3, resolved_by_user_id=$4, resolved_at=$5
		where community_id=$1 and id=$2
	`, communityID, id, resolution, resolvedBy, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return moderation.ErrReportNotFound
	}
	return nil
}

func (s *Store) SetReportStatus(ctx context.Context, communityID, id string, status moderation.ReportStatus) error {
	res, err := s.db.ExecContext(ctx, `
		update reports set status=$3 where community_id=$1 and id=$2
	`, communityID, id, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return moderation.ErrReportNotFound
	}
	return nil
}
