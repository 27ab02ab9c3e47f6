package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wardenhq.org/internal/dispatch"
)

type callView struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Priority        int                 `json:"priority"`
	Status          dispatch.CallStatus `json:"status"`
	LocationName    string              `json:"locationName,omitempty"`
	AssignedUnitIDs []string            `json:"assignedUnitIds,omitempty"`
	CreatedBy       string              `json:"createdByUserId"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func toCallView(c dispatch.Call) callView {
	return callView{
		ID:              c.ID,
		Title:           c.Title,
		Priority:        c.Priority,
		Status:          c.Status,
		LocationName:    c.LocationName,
		AssignedUnitIDs: c.AssignedUnitIDs,
		CreatedBy:       c.CreatedByUserID,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type createCallRequest struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (a *API) handleCallsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCalls(w, r)
	case http.MethodPost:
		a.createCall(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleCallResource routes /v1/dispatch/calls/{id} and .../{id}/status.
func (a *API) handleCallResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/dispatch/calls/")
	if id, ok := strings.CutSuffix(path, "/status"); ok && id != "" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transitionCall(w, r, id)
		return
	}
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.getCall(w, r, path)
}

func (a *API) createCall(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createCallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	call, err := a.dispatch.CreateCall(r.Context(), p.CommunityID, p.UserID, req.Title, req.Priority)
	if err != nil {
		handleDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCallView(call))
}

func (a *API) getCall(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	call, err := a.dispatch.Get(r.Context(), p.CommunityID, id)
	if err != nil {
		handleDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallView(call))
}

func (a *API) listCalls(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var status dispatch.CallStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := dispatch.ParseCallStatus(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown status filter")
			return
		}
		status = parsed
	}
	calls, err := a.dispatch.List(r.Context(), p.CommunityID, status, queryLimit(r, 60, 200))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]callView, 0, len(calls))
	for _, c := range calls {
		items = append(items, toCallView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) transitionCall(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	next, err := dispatch.ParseCallStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}
	call, err := a.dispatch.Transition(r.Context(), p.CommunityID, id, p.UserID, next)
	if err != nil {
		handleDispatchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallView(call))
}

func handleDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrCallNotFound):
		writeError(w, r, http.StatusNotFound, "call not found")
	case errors.Is(err, dispatch.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, dispatch.ErrSupervisorOnlyCancel):
		writeError(w, r, http.StatusConflict, "supervisor_only_cancel")
	case errors.Is(err, dispatch.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, "invalid_transition")
	default:
		writeError(w, r, http.StatusBadRequest, err.Error())
	}
}

func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}
