package engine

import (
	"context"

	"wardenhq.org/internal/command"
)

// Reason is the machine-readable cause attached to a denied verdict.
type Reason string

const (
	ReasonNotFound               Reason = "not_found"
	ReasonCommandDisabled        Reason = "command_disabled"
	ReasonAccountDisabled        Reason = "account_disabled"
	ReasonInsufficientPermission Reason = "insufficient_permission"
	ReasonInvalidPayload         Reason = "invalid_payload"
	ReasonSensitiveModeRequired  Reason = "sensitive_mode_required"
	ReasonCooldownActive         Reason = "cooldown_active"
	ReasonAuditUnavailable       Reason = "audit_unavailable"
	ReasonNotPending             Reason = "not_pending"
	ReasonSelfApprovalForbidden  Reason = "self_approval_forbidden"
	ReasonExpired                Reason = "expired"
	ReasonExecutionFailed        Reason = "execution_failed"
)

// VerdictStatus is the wire-level outcome of an authorization attempt.
type VerdictStatus string

const (
	StatusExecuted        VerdictStatus = "executed"
	StatusPendingApproval VerdictStatus = "pending_approval"
	StatusDenied          VerdictStatus = "denied"
)

// Verdict is the single result of one command invocation.
type Verdict struct {
	Status      VerdictStatus `json:"status"`
	Message     string        `json:"message"`
	ApprovalID  string        `json:"approvalId,omitempty"`
	Reason      Reason        `json:"reason,omitempty"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
}

// ExecInput carries everything an executor needs for one command.
type ExecInput struct {
	CommunityID string
	CommandID   string
	Payload     command.Payload
	ActorUserID string
	ApprovalID  string
	ApprovedBy  string
}

// ExecResult is the executor's report of a completed command.
type ExecResult struct {
	Message     string
	RedirectURL string
}

// Executor applies the opaque side effect of a command. The engine invokes
// it at most once per executed or approved command.
type Executor interface {
	Execute(ctx context.Context, in ExecInput) (ExecResult, error)
}
