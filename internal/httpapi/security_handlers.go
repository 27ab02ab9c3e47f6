package httpapi

import (
	"net/http"
	"time"

	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
)

type settingsView struct {
	Require2FAForPrivileged         bool   `json:"require2faForPrivileged"`
	TwoPersonRule                   bool   `json:"twoPersonRule"`
	RequireSensitiveModeForHighRisk bool   `json:"requireSensitiveModeForHighRisk"`
	SensitiveModeTTLMinutes         int    `json:"sensitiveModeTtlMinutes"`
	HighRiskCommandCooldownSeconds  int    `json:"highRiskCommandCooldownSeconds"`
	ApprovalTTLMinutes              int    `json:"approvalTtlMinutes"`
	AutoFreezeEnabled               bool   `json:"autoFreezeEnabled"`
	AutoFreezeThreshold             string `json:"autoFreezeThreshold"`
	LockoutMaxAttempts              int    `json:"lockoutMaxAttempts"`
	LockoutWindowMinutes            int    `json:"lockoutWindowMinutes"`
	LockoutDurationMinutes          int    `json:"lockoutDurationMinutes"`
}

func toSettingsView(s security.Settings) settingsView {
	return settingsView{
		Require2FAForPrivileged:         s.Require2FAForPrivileged,
		TwoPersonRule:                   s.TwoPersonRule,
		RequireSensitiveModeForHighRisk: s.RequireSensitiveModeForHighRisk,
		SensitiveModeTTLMinutes:         s.SensitiveModeTTLMinutes,
		HighRiskCommandCooldownSeconds:  s.HighRiskCommandCooldownSeconds,
		ApprovalTTLMinutes:              s.ApprovalTTLMinutes,
		AutoFreezeEnabled:               s.AutoFreezeEnabled,
		AutoFreezeThreshold:             string(s.AutoFreezeThreshold),
		LockoutMaxAttempts:              s.LockoutMaxAttempts,
		LockoutWindowMinutes:            s.LockoutWindowMinutes,
		LockoutDurationMinutes:          s.LockoutDurationMinutes,
	}
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getSettings(w, r)
	case http.MethodPut:
		a.putSettings(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if _, ok := a.requirePermission(w, r, p, rbac.PermSecurityRead); !ok {
		return
	}
	s, err := security.GetSettings(r.Context(), a.settings, p.CommunityID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(s))
}

// putSettings replaces the whole settings record; last write wins.
func (a *API) putSettings(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if _, ok := a.requirePermission(w, r, p, rbac.PermSettingsEdit); !ok {
		return
	}
	var req settingsView
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	threshold, err := command.ParseRiskLevel(req.AutoFreezeThreshold)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid autoFreezeThreshold")
		return
	}
	if req.SensitiveModeTTLMinutes <= 0 || req.ApprovalTTLMinutes <= 0 {
		writeError(w, r, http.StatusBadRequest, "ttl values must be positive")
		return
	}
	if req.HighRiskCommandCooldownSeconds < 0 {
		writeError(w, r, http.StatusBadRequest, "cooldown must not be negative")
		return
	}

	s := security.Settings{
		CommunityID:                     p.CommunityID,
		Require2FAForPrivileged:         req.Require2FAForPrivileged,
		TwoPersonRule:                   req.TwoPersonRule,
		RequireSensitiveModeForHighRisk: req.RequireSensitiveModeForHighRisk,
		SensitiveModeTTLMinutes:         req.SensitiveModeTTLMinutes,
		HighRiskCommandCooldownSeconds:  req.HighRiskCommandCooldownSeconds,
		ApprovalTTLMinutes:              req.ApprovalTTLMinutes,
		AutoFreezeEnabled:               req.AutoFreezeEnabled,
		AutoFreezeThreshold:             threshold,
		LockoutMaxAttempts:              req.LockoutMaxAttempts,
		LockoutWindowMinutes:            req.LockoutWindowMinutes,
		LockoutDurationMinutes:          req.LockoutDurationMinutes,
	}
	if err := a.settings.Save(r.Context(), s); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.appendAudit(r, p.CommunityID, p.UserID, audit.EventSettingsUpdated, "", map[string]any{
		"twoPersonRule":                   s.TwoPersonRule,
		"requireSensitiveModeForHighRisk": s.RequireSensitiveModeForHighRisk,
	})
	writeJSON(w, http.StatusOK, toSettingsView(s))
}

func (a *API) handleSensitiveMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.sensitiveModeStatus(w, r)
	case http.MethodPost:
		a.enableSensitiveMode(w, r)
	case http.MethodDelete:
		a.disableSensitiveMode(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) sensitiveModeStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	grant, err := a.grants.Find(r.Context(), p.SessionID)
	now := a.now().UTC()
	active := err == nil && grant.UserID == p.UserID && grant.Active(now)
	resp := map[string]any{"active": active}
	if active {
		resp["expiresAt"] = grant.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// enableSensitiveMode grants time-boxed elevation bound to the caller's
// session. Re-enabling refreshes the expiry.
func (a *API) enableSensitiveMode(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if _, ok := a.requirePermission(w, r, p, rbac.PermCommandsRun); !ok {
		return
	}
	s, err := security.GetSettings(r.Context(), a.settings, p.CommunityID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	now := a.now().UTC()
	grant := security.SensitiveGrant{
		UserID:       p.UserID,
		SessionToken: p.SessionID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(s.SensitiveModeTTLMinutes) * time.Minute),
	}
	if err := a.grants.Save(r.Context(), grant); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.appendAudit(r, p.CommunityID, p.UserID, audit.EventSensitiveModeEnabled, "", map[string]any{
		"expiresAt": grant.ExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "expiresAt": grant.ExpiresAt})
}

func (a *API) disableSensitiveMode(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if err := a.grants.Delete(r.Context(), p.SessionID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.appendAudit(r, p.CommunityID, p.UserID, audit.EventSensitiveModeDisable, "", nil)
	writeJSON(w, http.StatusOK, map[string]any{"active": false})
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if _, ok := a.requirePermission(w, r, p, rbac.PermAuditRead); !ok {
		return
	}
	limit := queryLimit(r, 50, 500)
	entries, err := a.sink.List(r.Context(), p.CommunityID, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
