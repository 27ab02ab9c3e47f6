package httpapi

import (
	"net/http"
	"strings"
	"time"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/engine"
	"wardenhq.org/internal/rbac"
)

type approvalView struct {
	ID          string            `json:"id"`
	CommandID   string            `json:"commandId"`
	Risk        command.RiskLevel `json:"riskLevel"`
	Payload     command.Payload   `json:"payload"`
	RequestedBy string            `json:"requestedByUserId"`
	Status      approval.Status   `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	ResolvedBy  string            `json:"resolvedByUserId,omitempty"`
	ResolvedAt  *time.Time        `json:"resolvedAt,omitempty"`
}

func toApprovalView(r approval.Request) approvalView {
	return approvalView{
		ID:          r.ID,
		CommandID:   r.CommandID,
		Risk:        r.Risk,
		Payload:     r.Payload,
		RequestedBy: r.RequestedByUserID,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ResolvedBy:  r.ResolvedByUserID,
		ResolvedAt:  r.ResolvedAt,
	}
}

func (a *API) handleApprovalsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listApprovals(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

// handleApprovalResource routes /v1/approvals/{id}/approve and .../reject.
func (a *API) handleApprovalResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/approvals/")
	if id, ok := strings.CutSuffix(path, "/approve"); ok && id != "" {
		a.resolveApproval(w, r, id, approval.DecisionApprove)
		return
	}
	if id, ok := strings.CutSuffix(path, "/reject"); ok && id != "" {
		a.resolveApproval(w, r, id, approval.DecisionReject)
		return
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

// listApprovals is the inbox: every PENDING request for the community.
func (a *API) listApprovals(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if _, ok := a.requirePermission(w, r, p, rbac.PermCommandsManage); !ok {
		return
	}
	pending, err := a.approvals.ListPending(r.Context(), p.CommunityID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]approvalView, 0, len(pending))
	for _, req := range pending {
		items = append(items, toApprovalView(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) resolveApproval(w http.ResponseWriter, r *http.Request, id string, decision approval.Decision) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	verdict, err := a.engine.ResolveApproval(r.Context(), engine.ResolveInput{
		CommunityID:    p.CommunityID,
		ApprovalID:     id,
		ResolverUserID: p.UserID,
		Decision:       decision,
		SessionToken:   p.SessionID,
		IP:             clientIP(r),
		UserAgent:      r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}
