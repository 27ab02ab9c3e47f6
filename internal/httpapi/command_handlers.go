package httpapi

import (
	"net/http"
	"strings"

	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/engine"
	"wardenhq.org/internal/ids"
	"wardenhq.org/internal/rbac"
)

type runCommandRequest struct {
	CommandID string          `json:"commandId"`
	Payload   command.Payload `json:"payload"`
}

type commandSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Risk        command.RiskLevel `json:"riskLevel"`
	Enabled     bool              `json:"enabled"`
	Runnable    bool              `json:"runnable"`
}

func (a *API) handleCommandsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCommands(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleCommandRun(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.runCommand(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

// handleCommandResource routes /v1/commands/{id}/toggle.
func (a *API) handleCommandResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/commands/")
	if id, ok := strings.CutSuffix(path, "/toggle"); ok && id != "" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.toggleCommand(w, r, id)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) listCommands(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	member, err := a.members.Find(r.Context(), p.CommunityID, p.UserID)
	if err != nil || member.Disabled() {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return
	}

	idsList := a.registry.IDs()
	out := make([]commandSummary, 0, len(idsList))
	for _, id := range idsList {
		def, err := a.registry.Resolve(id)
		if err != nil {
			continue
		}
		enabled, err := command.IsEnabled(r.Context(), a.toggles, p.CommunityID, id)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		out = append(out, commandSummary{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Risk:        def.Risk,
			Enabled:     enabled,
			Runnable:    enabled && rbac.HasPermission(member.Role, def.RequiredPermission),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) runCommand(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req runCommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.CommandID) == "" {
		writeError(w, r, http.StatusBadRequest, "commandId is required")
		return
	}

	verdict, err := a.engine.Authorize(r.Context(), engine.AuthorizeInput{
		CommunityID:  p.CommunityID,
		ActorUserID:  p.UserID,
		CommandID:    req.CommandID,
		Payload:      req.Payload,
		SessionToken: p.SessionID,
		IP:           clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	// The verdict is the resource: denials travel in the body, not as
	// transport-level errors.
	writeJSON(w, http.StatusOK, verdict)
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) toggleCommand(w http.ResponseWriter, r *http.Request, commandID string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if _, ok := a.requirePermission(w, r, p, rbac.PermCommandsManage); !ok {
		return
	}
	if _, err := a.registry.Resolve(commandID); err != nil {
		writeError(w, r, http.StatusNotFound, "unknown command")
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	now := a.now().UTC()
	toggle := command.Toggle{
		CommunityID: p.CommunityID,
		CommandID:   commandID,
		Enabled:     req.Enabled,
		UpdatedBy:   p.UserID,
		UpdatedAt:   now,
	}
	if err := a.toggles.Set(r.Context(), toggle); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.appendAudit(r, p.CommunityID, p.UserID, audit.EventCommandToggled, commandID, map[string]any{
		"commandId": commandID,
		"enabled":   req.Enabled,
	})
	writeJSON(w, http.StatusOK, toggle)
}

// appendAudit writes a best-effort audit entry for administrative actions.
func (a *API) appendAudit(r *http.Request, communityID, userID, event, targetID string, meta map[string]any) {
	entry := &audit.Entry{
		ID:          ids.New(),
		CommunityID: communityID,
		UserID:      userID,
		EventType:   event,
		TargetID:    targetID,
		IP:          clientIP(r),
		UserAgent:   r.UserAgent(),
		CreatedAt:   a.now().UTC(),
		Metadata:    meta,
	}
	if err := a.sink.Append(r.Context(), entry); err != nil {
		_ = audit.LogEvent(r.Context(), event, meta)
	}
}
