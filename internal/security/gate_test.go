package security

import (
	"context"
	"testing"
	"time"

	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
)

type fakeGrants struct {
	grants map[string]SensitiveGrant
}

func (f *fakeGrants) Find(_ context.Context, token string) (SensitiveGrant, error) {
	g, ok := f.grants[token]
	if !ok {
		return SensitiveGrant{}, ErrGrantNotFound
	}
	return g, nil
}

func (f *fakeGrants) Save(_ context.Context, g SensitiveGrant) error {
	if f.grants == nil {
		f.grants = map[string]SensitiveGrant{}
	}
	f.grants[g.SessionToken] = g
	return nil
}

func (f *fakeGrants) Delete(_ context.Context, token string) error {
	delete(f.grants, token)
	return nil
}

type fakeAudit struct {
	last  map[string]time.Time
	fail  error
	wrote []audit.Entry
}

func (f *fakeAudit) Append(_ context.Context, e *audit.Entry) error {
	if f.fail != nil {
		return f.fail
	}
	f.wrote = append(f.wrote, *e)
	return nil
}

func (f *fakeAudit) LastCommandExecution(_ context.Context, communityID, userID string, risk command.RiskLevel) (time.Time, bool, error) {
	t, ok := f.last[communityID+"/"+userID+"/"+string(risk)]
	return t, ok, nil
}

func (f *fakeAudit) List(_ context.Context, _ string, _ int) ([]audit.Entry, error) {
	return f.wrote, nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestGateAllowsLowRisk(t *testing.T) {
	gate := &Gate{Grants: &fakeGrants{}, Audit: &fakeAudit{}}
	settings := DefaultSettings("c1")

	d, err := gate.Check(context.Background(), settings, CheckInput{
		CommunityID: "c1", UserID: "u1", Risk: command.RiskLow,
	})
	if err != nil || !d.Allowed {
		t.Fatalf("low risk must pass: %+v, %v", d, err)
	}
}

func TestGateDeniesWithoutGrant(t *testing.T) {
	gate := &Gate{Grants: &fakeGrants{}, Audit: &fakeAudit{}}
	settings := DefaultSettings("c1")

	d, err := gate.Check(context.Background(), settings, CheckInput{
		CommunityID: "c1", UserID: "u1", Risk: command.RiskHigh,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != ReasonSensitiveModeRequired {
		t.Fatalf("expected sensitive_mode_required, got %+v", d)
	}
}

func TestGateExpiredGrantEqualsAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grants := &fakeGrants{}
	_ = grants.Save(context.Background(), SensitiveGrant{
		UserID:       "u1",
		SessionToken: "tok",
		ExpiresAt:    now.Add(-time.Minute),
	})
	gate := &Gate{Grants: grants, Audit: &fakeAudit{}, Now: fixedClock(now)}

	d, err := gate.Check(context.Background(), DefaultSettings("c1"), CheckInput{
		CommunityID: "c1", UserID: "u1", SessionToken: "tok", Risk: command.RiskHigh,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != ReasonSensitiveModeRequired {
		t.Fatalf("expired grant must gate identically to absent: %+v", d)
	}
}

func TestGateRejectsForeignGrant(t *testing.T) {
	now := time.Now()
	grants := &fakeGrants{}
	_ = grants.Save(context.Background(), SensitiveGrant{
		UserID:       "someone-else",
		SessionToken: "tok",
		ExpiresAt:    now.Add(time.Hour),
	})
	gate := &Gate{Grants: grants, Audit: &fakeAudit{}, Now: fixedClock(now)}

	d, err := gate.Check(context.Background(), DefaultSettings("c1"), CheckInput{
		CommunityID: "c1", UserID: "u1", SessionToken: "tok", Risk: command.RiskCritical,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("grant minted for another user must not elevate")
	}
}

func TestGateCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grants := &fakeGrants{}
	_ = grants.Save(context.Background(), SensitiveGrant{
		UserID:       "u1",
		SessionToken: "tok",
		ExpiresAt:    now.Add(time.Hour),
	})
	sink := &fakeAudit{last: map[string]time.Time{
		"c1/u1/HIGH": now.Add(-30 * time.Second),
	}}
	gate := &Gate{Grants: grants, Audit: sink, Now: fixedClock(now)}
	settings := DefaultSettings("c1") // 60s cooldown

	d, err := gate.Check(context.Background(), settings, CheckInput{
		CommunityID: "c1", UserID: "u1", SessionToken: "tok", Risk: command.RiskHigh,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.Reason != ReasonCooldownActive {
		t.Fatalf("expected cooldown_active, got %+v", d)
	}
	if d.RetryAfter != 30*time.Second {
		t.Fatalf("retry after = %s, want 30s", d.RetryAfter)
	}

	// Outside the window the same attempt passes.
	sink.last["c1/u1/HIGH"] = now.Add(-61 * time.Second)
	d, err = gate.Check(context.Background(), settings, CheckInput{
		CommunityID: "c1", UserID: "u1", SessionToken: "tok", Risk: command.RiskHigh,
	})
	if err != nil || !d.Allowed {
		t.Fatalf("cooldown should have lapsed: %+v, %v", d, err)
	}
}

func TestCooldownRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := &fakeAudit{last: map[string]time.Time{
		"c1/u1/HIGH": now.Add(-45 * time.Second),
	}}
	gate := &Gate{Grants: &fakeGrants{}, Audit: sink, Now: fixedClock(now)}
	settings := DefaultSettings("c1") // 60s cooldown

	remaining, active, err := gate.CooldownRemaining(context.Background(), settings, "c1", "u1", command.RiskHigh)
	if err != nil {
		t.Fatal(err)
	}
	if !active || remaining != 15*time.Second {
		t.Fatalf("remaining = %s active = %v, want 15s active", remaining, active)
	}

	settings.HighRiskCommandCooldownSeconds = 0
	if _, active, _ := gate.CooldownRemaining(context.Background(), settings, "c1", "u1", command.RiskHigh); active {
		t.Fatal("disabled cooldown must never be active")
	}

	if _, active, _ := gate.CooldownRemaining(context.Background(), DefaultSettings("c1"), "c1", "u2", command.RiskHigh); active {
		t.Fatal("no execution record means no cooldown")
	}
}

func TestRequiresDualControl(t *testing.T) {
	on := DefaultSettings("c1")
	off := on
	off.TwoPersonRule = false

	if !RequiresDualControl(command.RiskCritical, off) {
		t.Fatal("CRITICAL always requires dual control")
	}
	if !RequiresDualControl(command.RiskHigh, on) {
		t.Fatal("HIGH requires dual control under two-person rule")
	}
	if RequiresDualControl(command.RiskHigh, off) {
		t.Fatal("HIGH without two-person rule executes directly")
	}
	if RequiresDualControl(command.RiskMedium, on) || RequiresDualControl(command.RiskLow, on) {
		t.Fatal("lower tiers never require dual control")
	}
}

func TestGetSettingsFallsBackToDefaults(t *testing.T) {
	store := &fakeSettingsStore{}
	s, err := GetSettings(context.Background(), store, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if s.CommunityID != "c1" || !s.TwoPersonRule || s.ApprovalTTLMinutes != 60 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

type fakeSettingsStore struct {
	saved map[string]Settings
}

func (f *fakeSettingsStore) Find(_ context.Context, communityID string) (Settings, error) {
	s, ok := f.saved[communityID]
	if !ok {
		return Settings{}, ErrSettingsNotFound
	}
	return s, nil
}

func (f *fakeSettingsStore) Save(_ context.Context, s Settings) error {
	if f.saved == nil {
		f.saved = map[string]Settings{}
	}
	f.saved[s.CommunityID] = s
	return nil
}
