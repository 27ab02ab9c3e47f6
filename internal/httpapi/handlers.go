package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
	"wardenhq.org/internal/engine"
	"wardenhq.org/internal/obs"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the API's collaborators.
type Config struct {
	Engine    *engine.Engine
	Approvals *approval.Service
	Dispatch  *dispatch.Service
	Registry  *command.Registry
	Members   rbac.MembershipStore
	Toggles   command.ToggleStore
	Settings  security.SettingsStore
	Grants    security.SensitiveGrantStore
	Audit     audit.Store
	Ready     ReadyProbe
	Version   string
	Now       func() time.Time
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	engine    *engine.Engine
	approvals *approval.Service
	dispatch  *dispatch.Service
	registry  *command.Registry
	members   rbac.MembershipStore
	toggles   command.ToggleStore
	settings  security.SettingsStore
	grants    security.SensitiveGrantStore
	sink      audit.Store
	now       func() time.Time
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.Ready,
		version:    cfg.Version,
		engine:     cfg.Engine,
		approvals:  cfg.Approvals,
		dispatch:   cfg.Dispatch,
		registry:   cfg.Registry,
		members:    cfg.Members,
		toggles:    cfg.Toggles,
		settings:   cfg.Settings,
		grants:     cfg.Grants,
		sink:       cfg.Audit,
		now:        cfg.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// commands
	a.mux.HandleFunc("/v1/commands", a.handleCommandsCollection)
	a.mux.HandleFunc("/v1/commands/run", a.handleCommandRun)
	a.mux.HandleFunc("/v1/commands/", a.handleCommandResource)

	// approvals
	a.mux.HandleFunc("/v1/approvals", a.handleApprovalsCollection)
	a.mux.HandleFunc("/v1/approvals/", a.handleApprovalResource)

	// security
	a.mux.HandleFunc("/v1/security/settings", a.handleSettings)
	a.mux.HandleFunc("/v1/security/sensitive-mode", a.handleSensitiveMode)

	// dispatch
	a.mux.HandleFunc("/v1/dispatch/calls", a.handleCallsCollection)
	a.mux.HandleFunc("/v1/dispatch/calls/", a.handleCallResource)

	// audit
	a.mux.HandleFunc("/v1/audit", a.handleAuditList)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "warden-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "warden-api",
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
