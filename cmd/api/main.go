package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"wardenhq.org/internal/approval"
	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/dispatch"
	"wardenhq.org/internal/engine"
	"wardenhq.org/internal/httpapi"
	"wardenhq.org/internal/moderation"
	"wardenhq.org/internal/obs"
	"wardenhq.org/internal/rbac"
	"wardenhq.org/internal/security"
	"wardenhq.org/internal/store/memory"
	"wardenhq.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("WARDEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var (
		members   rbac.MembershipStore
		toggles   command.ToggleStore
		settings  security.SettingsStore
		grants    security.SensitiveGrantStore
		approvalR approval.Store
		callsR    dispatch.Store
		sink      audit.Store
		players   moderation.PlayerStore
		actions   moderation.ActionStore
		cases     moderation.CaseStore
		reports   moderation.ReportStore
		db        *sql.DB
	)

	if dsn := os.Getenv("WARDEN_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		members = store.Memberships()
		toggles = store.Toggles()
		settings = store.Settings()
		grants = store.Grants()
		approvalR = store.Approvals()
		callsR = store.Calls()
		sink = store.Audit()
		players = store.Players()
		actions = store.Actions()
		cases = store.Cases()
		reports = store.Reports()
	} else {
		// Standalone dev mode: everything in memory, nothing survives a
		// restart.
		mm := memory.NewMemberships()
		members = mm
		toggles = memory.NewToggles()
		settings = memory.NewSettings()
		grants = memory.NewGrants()
		approvalR = memory.NewApprovals()
		callsR = memory.NewCalls()
		sink = memory.NewAudit()
		players = memory.NewPlayers()
		actions = memory.NewActions()
		cases = memory.NewCases()
		reports = memory.NewReports()

		// WARDEN_DEV_OWNER="community:user" bootstraps an OWNER membership
		// so the API is usable without a database.
		if seed := os.Getenv("WARDEN_DEV_OWNER"); seed != "" {
			communityID, userID, ok := strings.Cut(seed, ":")
			if !ok || communityID == "" || userID == "" {
				log.Fatalf("WARDEN_DEV_OWNER must be community:user, got %q", seed)
			}
			err := mm.Upsert(context.Background(), &rbac.Membership{
				CommunityID: communityID,
				UserID:      userID,
				Role:        rbac.RoleOwner,
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				log.Fatalf("seed dev owner: %v", err)
			}
		}
	}

	registry := command.Builtin()
	approvals := approval.NewService(approvalR, registry, members, sink)
	calls := dispatch.NewService(callsR, members, sink)
	gate := &security.Gate{Grants: grants, Audit: sink}
	executor := moderation.NewExecutor(players, actions, cases, reports)

	eng, err := engine.New(engine.Config{
		Registry:  registry,
		Members:   members,
		Toggles:   toggles,
		Settings:  settings,
		Gate:      gate,
		Approvals: approvals,
		Audit:     sink,
		Executor:  executor,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Engine:    eng,
		Approvals: approvals,
		Dispatch:  calls,
		Registry:  registry,
		Members:   members,
		Toggles:   toggles,
		Settings:  settings,
		Grants:    grants,
		Audit:     sink,
		Ready:     httpapi.ReadyProbe{DB: db},
		Version:   version,
	})

	handler := api.Handler()
	handler = httpapi.RateLimit(handler, 40, 20)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go approvals.Run(sweepCtx, time.Minute)

	log.Printf("Starting warden-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
