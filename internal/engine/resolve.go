package engine

import (
	"context"
	"errors"
	"fmt"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/obs"
	"wardenhq.org/internal/security"
)

// ResolveInput is one approve/reject attempt against a pending request.
type ResolveInput struct {
	CommunityID    string
	ApprovalID     string
	ResolverUserID string
	Decision       approval.Decision
	SessionToken   string
	IP             string
	UserAgent      string
}

// ResolveApproval decides a pending request and, on approval, executes the
// deferred command on behalf of the original requester. A request that is
// already resolved or owned by the resolver is reported as such before the
// resolver's own elevation is examined; a failed elevation, an active
// requester cooldown or an invalid stored payload all leave the request
// PENDING for another decision.
func (e *Engine) ResolveApproval(ctx context.Context, in ResolveInput) (Verdict, error) {
	req, err := e.approvals.Find(ctx, in.ApprovalID)
	if err != nil {
		return denyVerdict(ReasonNotPending, "Approval request not found."), nil
	}
	if req.CommunityID != in.CommunityID {
		return denyVerdict(ReasonNotPending, "Approval request not found."), nil
	}
	if req.Status != approval.StatusPending {
		return denyVerdict(ReasonNotPending, "Request already resolved."), nil
	}
	if req.RequestedByUserID == in.ResolverUserID {
		return denyVerdict(ReasonSelfApprovalForbidden, "You cannot decide your own request."), nil
	}

	settings, err := security.GetSettings(ctx, e.settings, in.CommunityID)
	if err != nil {
		return Verdict{}, fmt.Errorf("settings lookup: %w", err)
	}
	if settings.RequireSensitiveModeForHighRisk &&
		(req.Risk == command.RiskHigh || req.Risk == command.RiskCritical) {
		active, err := e.gate.SensitiveModeActive(ctx, in.ResolverUserID, in.SessionToken)
		if err != nil {
			return Verdict{}, fmt.Errorf("elevation gate: %w", err)
		}
		if !active {
			return denyVerdict(ReasonSensitiveModeRequired, "Sensitive mode is required to decide high-risk requests."), nil
		}
	}

	// The requester's cooldown is re-checked at decision time.
	if req.Risk == command.RiskHigh {
		remaining, active, err := e.gate.CooldownRemaining(ctx, settings, req.CommunityID, req.RequestedByUserID, req.Risk)
		if err != nil {
			return Verdict{}, fmt.Errorf("cooldown check: %w", err)
		}
		if active {
			msg := fmt.Sprintf("Command cooldown active. Try again in %ds.", int(remaining.Seconds())+1)
			return denyVerdict(ReasonCooldownActive, msg), nil
		}
	}

	def, err := e.registry.Resolve(req.CommandID)
	if err != nil {
		return denyVerdict(ReasonNotFound, "Unknown command."), nil
	}
	// The stored payload is re-validated before the request is consumed: a
	// JSON round-trip through the store decodes list fields as []any, and
	// validation restores the typed form the executor expects.
	payload, err := command.ValidateInput(def, req.Payload)
	if errors.Is(err, command.ErrInvalidInput) {
		return denyVerdict(ReasonInvalidPayload, "Stored payload is no longer valid for this command."), nil
	}
	if err != nil {
		return Verdict{}, err
	}

	resolved, err := e.approvals.Resolve(ctx, approval.ResolveInput{
		ApprovalID: in.ApprovalID,
		ResolverID: in.ResolverUserID,
		Decision:   in.Decision,
		IP:         in.IP,
		UserAgent:  in.UserAgent,
	})
	switch {
	case errors.Is(err, approval.ErrNotPending):
		return denyVerdict(ReasonNotPending, "Request already resolved."), nil
	case errors.Is(err, approval.ErrSelfApproval):
		return denyVerdict(ReasonSelfApprovalForbidden, "You cannot decide your own request."), nil
	case errors.Is(err, approval.ErrInsufficientPermission):
		return denyVerdict(ReasonInsufficientPermission, "Insufficient permissions."), nil
	case errors.Is(err, approval.ErrExpired):
		return denyVerdict(ReasonExpired, "Request expired."), nil
	case err != nil:
		return Verdict{}, err
	}

	if resolved.Status == approval.StatusRejected {
		obs.CountDecision(string(StatusDenied), "rejected")
		return Verdict{Status: StatusDenied, Message: "Request rejected.", ApprovalID: resolved.ID}, nil
	}

	v, err := e.execute(ctx, ExecInput{
		CommunityID: resolved.CommunityID,
		CommandID:   resolved.CommandID,
		Payload:     payload,
		ActorUserID: resolved.RequestedByUserID,
		ApprovalID:  resolved.ID,
		ApprovedBy:  in.ResolverUserID,
	}, def, in.IP, in.UserAgent)
	if err != nil {
		return Verdict{}, err
	}
	v.ApprovalID = resolved.ID
	return v, nil
}

func denyVerdict(reason Reason, msg string) Verdict {
	obs.CountDecision(string(StatusDenied), string(reason))
	return Verdict{Status: StatusDenied, Reason: reason, Message: msg}
}
