package security

import (
	"context"
	"errors"

	"wardenhq.org/internal/command"
)

var ErrSettingsNotFound = errors.New("security: settings not found")

// Settings is the per-community security configuration. Singleton per
// community; writes overwrite the whole record (last-write-wins) and are
// gated by settings:edit upstream.
type Settings struct {
	CommunityID                     string
	Require2FAForPrivileged         bool
	TwoPersonRule                   bool
	RequireSensitiveModeForHighRisk bool
	SensitiveModeTTLMinutes         int
	HighRiskCommandCooldownSeconds  int
	ApprovalTTLMinutes              int
	AutoFreezeEnabled               bool
	AutoFreezeThreshold             command.RiskLevel
	LockoutMaxAttempts              int
	LockoutWindowMinutes            int
	LockoutDurationMinutes          int
}

// DefaultSettings mirrors the shipped defaults for a community without a
// stored record.
func DefaultSettings(communityID string) Settings {
	return Settings{
		CommunityID:                     communityID,
		Require2FAForPrivileged:         true,
		TwoPersonRule:                   true,
		RequireSensitiveModeForHighRisk: true,
		SensitiveModeTTLMinutes:         10,
		HighRiskCommandCooldownSeconds:  60,
		ApprovalTTLMinutes:              60,
		AutoFreezeEnabled:               false,
		AutoFreezeThreshold:             command.RiskCritical,
		LockoutMaxAttempts:              5,
		LockoutWindowMinutes:            15,
		LockoutDurationMinutes:          15,
	}
}

// SettingsStore persists per-community security settings.
type SettingsStore interface {
	Find(ctx context.Context, communityID string) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// GetSettings resolves effective settings, falling back to defaults when no
// record exists.
func GetSettings(ctx context.Context, store SettingsStore, communityID string) (Settings, error) {
	s, err := store.Find(ctx, communityID)
	if errors.Is(err, ErrSettingsNotFound) {
		return DefaultSettings(communityID), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

// RequiresDualControl reports whether a command at the given risk tier must
// be deferred for a second approver. CRITICAL always requires dual control
// regardless of settings.
func RequiresDualControl(risk command.RiskLevel, s Settings) bool {
	return risk == command.RiskCritical || (risk == command.RiskHigh && s.TwoPersonRule)
}
