package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/command"
	"wardenhq.org/internal/ids"
	"wardenhq.org/internal/obs"
	"wardenhq.org/internal/rbac"
)

// Service owns approval lifecycle transitions. External readers (the inbox)
// only observe; every mutation goes through here.
type Service struct {
	store    Store
	registry *command.Registry
	members  rbac.MembershipStore
	sink     audit.Store
	now      func() time.Time
}

// NewService wires the state machine to its collaborators.
func NewService(store Store, registry *command.Registry, members rbac.MembershipStore, sink audit.Store) *Service {
	return &Service{
		store:    store,
		registry: registry,
		members:  members,
		sink:     sink,
		now:      time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// CreateInput describes a command deferred for dual control. The caller has
// already passed permission, risk and elevation checks.
type CreateInput struct {
	// ID is optional; the caller may pre-allocate it so the audit entry can
	// reference the request before it exists.
	ID          string
	CommunityID string
	CommandID   string
	Risk        command.RiskLevel
	Payload     command.Payload
	RequestedBy string
	TTL         time.Duration
}

// Create persists a new PENDING request with its expiry deadline.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	now := s.now().UTC()
	id := in.ID
	if id == "" {
		id = ids.New()
	}
	req := Request{
		ID:                id,
		CommunityID:       in.CommunityID,
		CommandID:         in.CommandID,
		Risk:              in.Risk,
		Payload:           in.Payload,
		RequestedByUserID: in.RequestedBy,
		Status:            StatusPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(in.TTL),
	}
	if err := s.store.Create(ctx, &req); err != nil {
		return Request{}, fmt.Errorf("create approval: %w", err)
	}
	return req, nil
}

// ResolveInput identifies a resolution attempt.
type ResolveInput struct {
	ApprovalID string
	ResolverID string
	Decision   Decision
	IP         string
	UserAgent  string
}

// Resolve transitions a PENDING request to APPROVED or REJECTED.
// Preconditions are checked in order, first failure wins: pending, no
// self-approval, resolver permission, not expired. The terminal write is a
// compare-and-swap; the loser of a concurrent resolution race observes
// ErrNotPending.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (Request, error) {
	req, err := s.store.Find(ctx, in.ApprovalID)
	if err != nil {
		return Request{}, ErrNotPending
	}
	if req.Status != StatusPending {
		return Request{}, ErrNotPending
	}

	if in.ResolverID == req.RequestedByUserID {
		return Request{}, ErrSelfApproval
	}

	def, err := s.registry.Resolve(req.CommandID)
	if err != nil {
		// Registry changed between create and resolve; treat as a permission
		// failure rather than executing an unknown command.
		return Request{}, ErrInsufficientPermission
	}
	member, err := s.members.Find(ctx, req.CommunityID, in.ResolverID)
	if err != nil || member.Disabled() {
		return Request{}, ErrInsufficientPermission
	}
	if !rbac.HasPermission(member.Role, def.RequiredPermission) ||
		!rbac.HasPermission(member.Role, rbac.PermCommandsManage) {
		return Request{}, ErrInsufficientPermission
	}

	now := s.now().UTC()
	if now.After(req.ExpiresAt) {
		if swapped, err := s.store.CompareAndResolve(ctx, req.ID, StatusExpired, "", now); err != nil {
			return Request{}, err
		} else if swapped {
			s.auditTerminal(ctx, req, StatusExpired, "", in)
		}
		return Request{}, ErrExpired
	}

	to := StatusRejected
	if in.Decision == DecisionApprove {
		to = StatusApproved
	}
	swapped, err := s.store.CompareAndResolve(ctx, req.ID, to, in.ResolverID, now)
	if err != nil {
		return Request{}, err
	}
	if !swapped {
		return Request{}, ErrNotPending
	}

	req.Status = to
	req.ResolvedByUserID = in.ResolverID
	req.ResolvedAt = &now
	s.auditTerminal(ctx, req, to, in.ResolverID, in)
	obs.CountResolution(string(to))
	return req, nil
}

// ListPending returns the approval inbox for a community.
func (s *Service) ListPending(ctx context.Context, communityID string) ([]Request, error) {
	return s.store.ListPending(ctx, communityID)
}

// Find returns a single request.
func (s *Service) Find(ctx context.Context, id string) (Request, error) {
	return s.store.Find(ctx, id)
}

// RecentPendingSince exposes the throttle read used by the pipeline.
func (s *Service) RecentPendingSince(ctx context.Context, communityID, userID string, since time.Time) (Request, bool, error) {
	return s.store.RecentPendingSince(ctx, communityID, userID, since)
}

// SweepExpired lazily transitions overdue PENDING requests to EXPIRED using
// the same compare-and-swap discipline as Resolve. Correctness never depends
// on the sweep running; Resolve re-checks the deadline itself.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	overdue, err := s.store.ExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, req := range overdue {
		swapped, err := s.store.CompareAndResolve(ctx, req.ID, StatusExpired, "", now)
		if err != nil {
			return swept, err
		}
		if !swapped {
			continue // lost to a concurrent resolve
		}
		s.auditTerminal(ctx, req, StatusExpired, "", ResolveInput{})
		obs.CountResolution(string(StatusExpired))
		swept++
	}
	return swept, nil
}

// Run drives the optional background sweep on a low-frequency timer until
// the context ends.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx, 100); err != nil {
				_ = audit.LogEvent(ctx, "approval.sweep_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

func (s *Service) auditTerminal(ctx context.Context, req Request, to Status, resolvedBy string, in ResolveInput) {
	event := audit.EventApprovalDecided
	if to == StatusExpired {
		event = audit.EventApprovalExpired
	}
	entry := &audit.Entry{
		ID:          ids.New(),
		CommunityID: req.CommunityID,
		UserID:      resolvedBy,
		EventType:   event,
		TargetID:    req.ID,
		Risk:        req.Risk,
		IP:          in.IP,
		UserAgent:   in.UserAgent,
		CreatedAt:   s.now().UTC(),
		Metadata: map[string]any{
			"approvalId": req.ID,
			"commandId":  req.CommandID,
			"status":     string(to),
		},
	}
	if err := s.sink.Append(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		// Terminal state already committed; surface through the local log.
		_ = audit.LogEvent(ctx, event, entry.Metadata)
	}
}
