package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/ids"
	"wardenhq.org/internal/obs"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
)

// Engine composes permission, risk, elevation and approval policy into a
// single verdict per command invocation. All state lives in the injected
// collaborators; the engine itself is stateless and safe for concurrent use.
type Engine struct {
	registry  *command.Registry
	members   rbac.MembershipStore
	toggles   command.ToggleStore
	settings  security.SettingsStore
	gate      *security.Gate
	approvals *approval.Service
	sink      audit.Store
	exec      Executor
	now       func() time.Time
}

// Config wires an Engine. Every field is required except Now.
type Config struct {
	Registry  *command.Registry
	Members   rbac.MembershipStore
	Toggles   command.ToggleStore
	Settings  security.SettingsStore
	Gate      *security.Gate
	Approvals *approval.Service
	Audit     audit.Store
	Executor  Executor
	Now       func() time.Time
}

// New validates the wiring and returns an Engine.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errors.New("engine: registry is required")
	case cfg.Members == nil:
		return nil, errors.New("engine: membership store is required")
	case cfg.Toggles == nil:
		return nil, errors.New("engine: toggle store is required")
	case cfg.Settings == nil:
		return nil, errors.New("engine: settings store is required")
	case cfg.Gate == nil:
		return nil, errors.New("engine: elevation gate is required")
	case cfg.Approvals == nil:
		return nil, errors.New("engine: approval service is required")
	case cfg.Audit == nil:
		return nil, errors.New("engine: audit sink is required")
	case cfg.Executor == nil:
		return nil, errors.New("engine: executor is required")
	}
	e := &Engine{
		registry:  cfg.Registry,
		members:   cfg.Members,
		toggles:   cfg.Toggles,
		settings:  cfg.Settings,
		gate:      cfg.Gate,
		approvals: cfg.Approvals,
		sink:      cfg.Audit,
		exec:      cfg.Executor,
		now:       cfg.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// AuthorizeInput is one command invocation attempt.
type AuthorizeInput struct {
	CommunityID  string
	ActorUserID  string
	CommandID    string
	Payload      command.Payload
	SessionToken string
	IP           string
	UserAgent    string
}

// Authorize runs the full check chain and returns exactly one verdict.
// Checks short-circuit on first failure; every branch, denials included,
// produces exactly one audit entry before returning.
func (e *Engine) Authorize(ctx context.Context, in AuthorizeInput) (Verdict, error) {
	def, err := e.registry.Resolve(in.CommandID)
	if errors.Is(err, command.ErrNotFound) {
		return e.deny(ctx, in, command.Definition{ID: in.CommandID}, ReasonNotFound, "Unknown command."), nil
	}
	if err != nil {
		return Verdict{}, err
	}

	enabled, err := command.IsEnabled(ctx, e.toggles, in.CommunityID, in.CommandID)
	if err != nil {
		return Verdict{}, fmt.Errorf("toggle lookup: %w", err)
	}
	if !enabled {
		return e.deny(ctx, in, def, ReasonCommandDisabled, "This command is currently disabled."), nil
	}

	member, err := e.members.Find(ctx, in.CommunityID, in.ActorUserID)
	if errors.Is(err, rbac.ErrMembershipNotFound) {
		return e.deny(ctx, in, def, ReasonInsufficientPermission, "Insufficient permissions."), nil
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("membership lookup: %w", err)
	}
	if member.Disabled() {
		return e.deny(ctx, in, def, ReasonAccountDisabled, "Account disabled."), nil
	}
	if !rbac.HasPermission(member.Role, def.RequiredPermission) {
		return e.deny(ctx, in, def, ReasonInsufficientPermission, "Insufficient permissions."), nil
	}

	payload, err := command.ValidateInput(def, in.Payload)
	if errors.Is(err, command.ErrInvalidInput) {
		return e.deny(ctx, in, def, ReasonInvalidPayload, err.Error()), nil
	}
	if err != nil {
		return Verdict{}, err
	}

	settings, err := security.GetSettings(ctx, e.settings, in.CommunityID)
	if err != nil {
		return Verdict{}, fmt.Errorf("settings lookup: %w", err)
	}

	decision, err := e.gate.Check(ctx, settings, security.CheckInput{
		CommunityID:  in.CommunityID,
		UserID:       in.ActorUserID,
		SessionToken: in.SessionToken,
		Risk:         def.Risk,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("elevation gate: %w", err)
	}
	if !decision.Allowed {
		msg := "Sensitive mode is required for high-risk operations."
		if decision.Reason == security.ReasonCooldownActive {
			msg = fmt.Sprintf("Command cooldown active. Try again in %ds.", int(decision.RetryAfter.Seconds())+1)
		}
		return e.deny(ctx, in, def, Reason(decision.Reason), msg), nil
	}

	if security.RequiresDualControl(def.Risk, settings) {
		return e.defer2(ctx, in, def, settings, payload)
	}

	return e.execute(ctx, ExecInput{
		CommunityID: in.CommunityID,
		CommandID:   def.ID,
		Payload:     payload,
		ActorUserID: in.ActorUserID,
	}, def, in.IP, in.UserAgent)
}

// defer2 parks the command behind a PENDING approval request.
func (e *Engine) defer2(ctx context.Context, in AuthorizeInput, def command.Definition, settings security.Settings, payload command.Payload) (Verdict, error) {
	// Throttle repeated high-risk requests: a still-pending request inside
	// the cooldown window blocks a new one.
	if settings.HighRiskCommandCooldownSeconds > 0 {
		window := time.Duration(settings.HighRiskCommandCooldownSeconds) * time.Second
		since := e.now().Add(-window)
		if _, found, err := e.approvals.RecentPendingSince(ctx, in.CommunityID, in.ActorUserID, since); err != nil {
			return Verdict{}, err
		} else if found {
			return e.deny(ctx, in, def, ReasonCooldownActive, "High-risk requests are cooling down."), nil
		}
	}

	approvalID := ids.New()
	entry := e.entry(in.CommunityID, in.ActorUserID, audit.EventApprovalRequested, approvalID, def.Risk, in.IP, in.UserAgent, map[string]any{
		"approvalId": approvalID,
		"commandId":  def.ID,
		"riskLevel":  string(def.Risk),
	})
	// The request must be provably requested before it exists: a lost audit
	// write blocks creation for CRITICAL commands.
	if err := e.sink.Append(ctx, entry); err != nil {
		if def.Risk == command.RiskCritical {
			_ = audit.LogEvent(ctx, audit.EventApprovalRequested, entry.Metadata)
			obs.CountDecision(string(StatusDenied), string(ReasonAuditUnavailable))
			return Verdict{Status: StatusDenied, Reason: ReasonAuditUnavailable, Message: "Audit log unavailable."}, nil
		}
		_ = audit.LogEvent(ctx, audit.EventApprovalRequested, entry.Metadata)
	}

	ttl := time.Duration(settings.ApprovalTTLMinutes) * time.Minute
	req, err := e.approvals.Create(ctx, approval.CreateInput{
		ID:          approvalID,
		CommunityID: in.CommunityID,
		CommandID:   def.ID,
		Risk:        def.Risk,
		Payload:     payload,
		RequestedBy: in.ActorUserID,
		TTL:         ttl,
	})
	if err != nil {
		return Verdict{}, err
	}

	obs.CountDecision(string(StatusPendingApproval), "")
	return Verdict{
		Status:     StatusPendingApproval,
		ApprovalID: req.ID,
		Message:    "Approval requested. Awaiting a second staff decision.",
	}, nil
}

// execute invokes the executor and writes the command.executed record. For
// CRITICAL commands the audit write happens first and failure blocks
// execution; for lower tiers the entry follows execution and falls back to
// the local log.
func (e *Engine) execute(ctx context.Context, in ExecInput, def command.Definition, ip, userAgent string) (Verdict, error) {
	meta := map[string]any{
		"commandId": def.ID,
		"riskLevel": string(def.Risk),
	}
	if in.ApprovalID != "" {
		meta["approvalId"] = in.ApprovalID
		meta["approvedByUserId"] = in.ApprovedBy
	}
	entry := e.entry(in.CommunityID, in.ActorUserID, audit.EventCommandExecuted, in.ApprovalID, def.Risk, ip, userAgent, meta)

	if def.Risk == command.RiskCritical {
		if err := e.sink.Append(ctx, entry); err != nil {
			obs.CountDecision(string(StatusDenied), string(ReasonAuditUnavailable))
			return Verdict{Status: StatusDenied, Reason: ReasonAuditUnavailable, Message: "Audit log unavailable."}, nil
		}
	}

	res, err := e.exec.Execute(ctx, in)
	if err != nil {
		failed := e.entry(in.CommunityID, in.ActorUserID, audit.EventExecutionFailed, in.ApprovalID, def.Risk, ip, userAgent, map[string]any{
			"commandId": def.ID,
			"error":     err.Error(),
		})
		if appendErr := e.sink.Append(ctx, failed); appendErr != nil {
			_ = audit.LogEvent(ctx, audit.EventExecutionFailed, failed.Metadata)
		}
		obs.CountDecision(string(StatusDenied), string(ReasonExecutionFailed))
		return Verdict{Status: StatusDenied, Reason: ReasonExecutionFailed, Message: err.Error()}, nil
	}

	if def.Risk != command.RiskCritical {
		if err := e.sink.Append(ctx, entry); err != nil {
			_ = audit.LogEvent(ctx, audit.EventCommandExecuted, meta)
		}
	}

	obs.CountDecision(string(StatusExecuted), "")
	return Verdict{Status: StatusExecuted, Message: res.Message, RedirectURL: res.RedirectURL}, nil
}

// deny emits the mandatory denial audit entry and builds the verdict.
// Denial telemetry is a security signal: the entry is not best-effort, and
// for CRITICAL commands a lost write downgrades the verdict to
// audit_unavailable.
func (e *Engine) deny(ctx context.Context, in AuthorizeInput, def command.Definition, reason Reason, msg string) Verdict {
	meta := map[string]any{
		"commandId": def.ID,
		"reason":    string(reason),
	}
	entry := e.entry(in.CommunityID, in.ActorUserID, audit.EventCommandDenied, "", def.Risk, in.IP, in.UserAgent, meta)
	if err := e.sink.Append(ctx, entry); err != nil {
		_ = audit.LogEvent(ctx, audit.EventCommandDenied, meta)
		if def.Risk == command.RiskCritical {
			reason = ReasonAuditUnavailable
			msg = "Audit log unavailable."
		}
	}
	obs.CountDecision(string(StatusDenied), string(reason))
	return Verdict{Status: StatusDenied, Reason: reason, Message: msg}
}

func (e *Engine) entry(communityID, userID, event, targetID string, risk command.RiskLevel, ip, userAgent string, meta map[string]any) *audit.Entry {
	return &audit.Entry{
		ID:          ids.New(),
		CommunityID: communityID,
		UserID:      userID,
		EventType:   event,
		TargetID:    targetID,
		Risk:        risk,
		IP:          ip,
		UserAgent:   userAgent,
		CreatedAt:   e.now().UTC(),
		Metadata:    meta,
	}
}
