package security

import (
	"context"
	"errors"
	"time"

	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
)

// DenyReason identifies why the elevation gate refused a command.
type DenyReason string

const (
	ReasonSensitiveModeRequired DenyReason = "sensitive_mode_required"
	ReasonCooldownActive        DenyReason = "cooldown_active"
)

// Decision is the gate's verdict for one command attempt.
type Decision struct {
	Allowed    bool
	Reason     DenyReason
	RetryAfter time.Duration
}

func allowed() Decision { return Decision{Allowed: true} }

func denied(reason DenyReason) Decision { return Decision{Reason: reason} }

// Gate evaluates sensitive-mode elevation and high-risk cooldowns. The
// cooldown check is advisory: two rapid submissions may both pass, which is
// accepted because the command side effect itself must be idempotent or
// rate-limited independently.
type Gate struct {
	Grants SensitiveGrantStore
	Audit  audit.Store
	Now    func() time.Time
}

// CheckInput carries the attempt under evaluation.
type CheckInput struct {
	CommunityID  string
	UserID       string
	SessionToken string
	Risk         command.RiskLevel
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func highRisk(r command.RiskLevel) bool {
	return r == command.RiskHigh || r == command.RiskCritical
}

// Check applies the elevation rules under the given settings. An expired or
// missing grant is indistinguishable from never having elevated.
func (g *Gate) Check(ctx context.Context, settings Settings, in CheckInput) (Decision, error) {
	if !highRisk(in.Risk) {
		return allowed(), nil
	}

	if settings.RequireSensitiveModeForHighRisk {
		ok, err := g.sensitiveModeActive(ctx, in.UserID, in.SessionToken)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return denied(ReasonSensitiveModeRequired), nil
		}
	}

	remaining, active, err := g.CooldownRemaining(ctx, settings, in.CommunityID, in.UserID, in.Risk)
	if err != nil {
		return Decision{}, err
	}
	if active {
		d := denied(ReasonCooldownActive)
		d.RetryAfter = remaining
		return d, nil
	}

	return allowed(), nil
}

// CooldownRemaining reports how much of the high-risk cooldown window is
// left for the user, based on their newest matching execution record. The
// engine also consults it when deciding a parked approval, so an approval
// cannot sidestep a window that would have blocked a fresh submission.
func (g *Gate) CooldownRemaining(ctx context.Context, settings Settings, communityID, userID string, risk command.RiskLevel) (time.Duration, bool, error) {
	if settings.HighRiskCommandCooldownSeconds <= 0 {
		return 0, false, nil
	}
	last, found, err := g.Audit.LastCommandExecution(ctx, communityID, userID, risk)
	if err != nil || !found {
		return 0, false, err
	}
	window := time.Duration(settings.HighRiskCommandCooldownSeconds) * time.Second
	elapsed := g.now().Sub(last)
	if elapsed >= window {
		return 0, false, nil
	}
	return window - elapsed, true, nil
}

// SensitiveModeActive reports whether the user holds a live grant for the
// session token.
func (g *Gate) SensitiveModeActive(ctx context.Context, userID, sessionToken string) (bool, error) {
	return g.sensitiveModeActive(ctx, userID, sessionToken)
}

func (g *Gate) sensitiveModeActive(ctx context.Context, userID, sessionToken string) (bool, error) {
	if sessionToken == "" {
		return false, nil
	}
	grant, err := g.Grants.Find(ctx, sessionToken)
	if errors.Is(err, ErrGrantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if grant.UserID != userID {
		return false, nil
	}
	return grant.Active(g.now()), nil
}
