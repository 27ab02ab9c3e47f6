package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/auth"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
	"wardenhq.org/internal/engine"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
	"wardenhq.org/internal/store/memory"
)

type okExecutor struct{}

func (okExecutor) Execute(context.Context, engine.ExecInput) (engine.ExecResult, error) {
	return engine.ExecResult{Message: "done"}, nil
}

type testAPI struct {
	api      *API
	handler  http.Handler
	members  *memory.Memberships
	settings *memory.Settings
	grants   *memory.Grants
	sink     *memory.Audit
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	t.Setenv("WARDEN_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	reg := command.Builtin()
	members := memory.NewMemberships()
	toggles := memory.NewToggles()
	settings := memory.NewSettings()
	grants := memory.NewGrants()
	sink := memory.NewAudit()
	approvals := approval.NewService(memory.NewApprovals(), reg, members, sink)
	calls := dispatch.NewService(memory.NewCalls(), members, sink)

	seed := func(user string, role rbac.Role) {
		err := members.Upsert(context.Background(), &rbac.Membership{
			CommunityID: "c1", UserID: user, Role: role, CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	seed("mod", rbac.RoleMod)
	seed("admin", rbac.RoleAdmin)
	seed("admin2", rbac.RoleAdmin)
	seed("viewer", rbac.RoleViewer)

	// Keep high-risk friction out of tests that do not exercise it.
	base := security.DefaultSettings("c1")
	base.TwoPersonRule = false
	base.RequireSensitiveModeForHighRisk = false
	base.HighRiskCommandCooldownSeconds = 0
	if err := settings.Save(context.Background(), base); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	gate := &security.Gate{Grants: grants, Audit: sink}
	eng, err := engine.New(engine.Config{
		Registry:  reg,
		Members:   members,
		Toggles:   toggles,
		Settings:  settings,
		Gate:      gate,
		Approvals: approvals,
		Audit:     sink,
		Executor:  okExecutor{},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	api := New(Config{
		Engine:    eng,
		Approvals: approvals,
		Dispatch:  calls,
		Registry:  reg,
		Members:   members,
		Toggles:   toggles,
		Settings:  settings,
		Grants:    grants,
		Audit:     sink,
		Version:   "test",
	})
	return &testAPI{
		api:      api,
		handler:  api.Handler(),
		members:  members,
		settings: settings,
		grants:   grants,
		sink:     sink,
	}
}

func (ta *testAPI) token(t *testing.T, user string) string {
	t.Helper()
	token, err := auth.GenerateToken(user, "c1", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return token
}

func (ta *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
}

func TestHealthzIsPublic(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRunRequiresToken(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodPost, "/v1/commands/run", "", map[string]any{
		"commandId": "warning.create",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRunCommandExecutes(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodPost, "/v1/commands/run", ta.token(t, "mod"), map[string]any{
		"commandId": "warning.create",
		"payload":   map[string]any{"playerId": "p1", "reason": "spamming chat"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var v engine.Verdict
	decodeBody(t, rec, &v)
	if v.Status != engine.StatusExecuted {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestRunCommandDeniedForViewer(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodPost, "/v1/commands/run", ta.token(t, "viewer"), map[string]any{
		"commandId": "warning.create",
		"payload":   map[string]any{"playerId": "p1", "reason": "spamming chat"},
	})
	var v engine.Verdict
	decodeBody(t, rec, &v)
	if v.Status != engine.StatusDenied || v.Reason != engine.ReasonInsufficientPermission {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestCriticalCommandApprovalFlow(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/v1/commands/run", ta.token(t, "admin"), map[string]any{
		"commandId": "ban.perm",
		"payload":   map[string]any{"playerId": "p1", "reason": "repeated abuse"},
	})
	var v engine.Verdict
	decodeBody(t, rec, &v)
	if v.Status != engine.StatusPendingApproval || v.ApprovalID == "" {
		t.Fatalf("verdict = %+v", v)
	}

	// The inbox shows the pending request.
	rec = ta.do(t, http.MethodGet, "/v1/approvals", ta.token(t, "admin2"), nil)
	var inbox struct {
		Items []approvalView `json:"items"`
	}
	decodeBody(t, rec, &inbox)
	if len(inbox.Items) != 1 || inbox.Items[0].ID != v.ApprovalID {
		t.Fatalf("inbox = %+v", inbox)
	}

	// Requester cannot decide their own request.
	rec = ta.do(t, http.MethodPost, "/v1/approvals/"+v.ApprovalID+"/approve", ta.token(t, "admin"), nil)
	var self engine.Verdict
	decodeBody(t, rec, &self)
	if self.Reason != engine.ReasonSelfApprovalForbidden {
		t.Fatalf("verdict = %+v", self)
	}

	// A second admin approves; the command executes.
	rec = ta.do(t, http.MethodPost, "/v1/approvals/"+v.ApprovalID+"/approve", ta.token(t, "admin2"), nil)
	var out engine.Verdict
	decodeBody(t, rec, &out)
	if out.Status != engine.StatusExecuted {
		t.Fatalf("verdict = %+v", out)
	}
}

func TestToggleGatedByManagePermission(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/v1/commands/warning.create/toggle", ta.token(t, "mod"), map[string]any{
		"enabled": false,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	rec = ta.do(t, http.MethodPost, "/v1/commands/warning.create/toggle", ta.token(t, "admin"), map[string]any{
		"enabled": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ta.do(t, http.MethodPost, "/v1/commands/run", ta.token(t, "mod"), map[string]any{
		"commandId": "warning.create",
		"payload":   map[string]any{"playerId": "p1", "reason": "spamming chat"},
	})
	var v engine.Verdict
	decodeBody(t, rec, &v)
	if v.Reason != engine.ReasonCommandDisabled {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestSensitiveModeLifecycle(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.token(t, "mod")

	rec := ta.do(t, http.MethodGet, "/v1/security/sensitive-mode", token, nil)
	var status struct {
		Active bool `json:"active"`
	}
	decodeBody(t, rec, &status)
	if status.Active {
		t.Fatal("sensitive mode must start inactive")
	}

	rec = ta.do(t, http.MethodPost, "/v1/security/sensitive-mode", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ta.do(t, http.MethodGet, "/v1/security/sensitive-mode", token, nil)
	decodeBody(t, rec, &status)
	if !status.Active {
		t.Fatal("sensitive mode should be active after enabling")
	}

	rec = ta.do(t, http.MethodDelete, "/v1/security/sensitive-mode", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d", rec.Code)
	}
	rec = ta.do(t, http.MethodGet, "/v1/security/sensitive-mode", token, nil)
	decodeBody(t, rec, &status)
	if status.Active {
		t.Fatal("sensitive mode should be inactive after disabling")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/v1/security/settings", ta.token(t, "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var view settingsView
	decodeBody(t, rec, &view)
	view.TwoPersonRule = true
	view.HighRiskCommandCooldownSeconds = 120

	rec = ta.do(t, http.MethodPut, "/v1/security/settings", ta.token(t, "admin"), view)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated settingsView
	decodeBody(t, rec, &updated)
	if !updated.TwoPersonRule || updated.HighRiskCommandCooldownSeconds != 120 {
		t.Fatalf("settings = %+v", updated)
	}

	rec = ta.do(t, http.MethodPut, "/v1/security/settings", ta.token(t, "mod"), view)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mod put status = %d, want 403", rec.Code)
	}
}

func TestDispatchCallLifecycle(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.token(t, "mod")

	rec := ta.do(t, http.MethodPost, "/v1/dispatch/calls", token, map[string]any{
		"title": "Disturbance at spawn", "priority": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var call callView
	decodeBody(t, rec, &call)
	if call.Status != dispatch.StatusOpen {
		t.Fatalf("call = %+v", call)
	}

	rec = ta.do(t, http.MethodPost, "/v1/dispatch/calls/"+call.ID+"/status", token, map[string]any{
		"status": "ASSIGNED",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transition status = %d: %s", rec.Code, rec.Body.String())
	}

	// Skipping states is a conflict.
	rec = ta.do(t, http.MethodPost, "/v1/dispatch/calls/"+call.ID+"/status", token, map[string]any{
		"status": "CLEARED",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("skip status = %d, want 409", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/v1/dispatch/calls?status=ASSIGNED", token, nil)
	var list struct {
		Items []callView `json:"items"`
	}
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 {
		t.Fatalf("list = %+v", list)
	}
}

func TestAuditListRequiresPermission(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/v1/audit", ta.token(t, "mod"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mod status = %d, want 403", rec.Code)
	}
	rec = ta.do(t, http.MethodGet, "/v1/audit", ta.token(t, "admin"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
}
