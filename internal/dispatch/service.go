package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wardenhq.org/internal/audit"
	"wardenhq.org/internal/ids"
	"wardenhq.org/internal/rbac"
)

var (
	ErrInvalidTransition    = errors.New("dispatch: invalid transition")
	ErrSupervisorOnlyCancel = errors.New("dispatch: supervisor only cancel")
	ErrForbidden            = errors.New("dispatch: forbidden")
)

// Service applies transition checks against stored calls and audits every
// status change.
type Service struct {
	store   Store
	members rbac.MembershipStore
	sink    audit.Store
	now     func() time.Time
}

// NewService wires the dispatch lifecycle to its collaborators.
func NewService(store Store, members rbac.MembershipStore, sink audit.Store) *Service {
	return &Service{store: store, members: members, sink: sink, now: time.Now}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// CreateCall opens a new dispatch call.
func (s *Service) CreateCall(ctx context.Context, communityID, actorUserID, title string, priority int) (Call, error) {
	member, err := s.members.Find(ctx, communityID, actorUserID)
	if err != nil || member.Disabled() {
		return Call{}, ErrForbidden
	}
	if !rbac.HasPermission(member.Role, rbac.PermDispatchManage) {
		return Call{}, ErrForbidden
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Call{}, errors.New("dispatch: title is required")
	}
	now := s.now().UTC()
	call := Call{
		ID:              ids.New(),
		CommunityID:     communityID,
		Title:           title,
		Priority:        priority,
		Status:          StatusOpen,
		CreatedByUserID: actorUserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, &call); err != nil {
		return Call{}, fmt.Errorf("create call: %w", err)
	}
	s.auditCall(ctx, call, audit.EventDispatchCallCreated, actorUserID, "")
	return call, nil
}

// Transition moves a call to the next status. The check itself is pure; the
// write is a compare-and-swap keyed on the status the check evaluated, so a
// concurrent transition forces a retry error instead of a lost update.
func (s *Service) Transition(ctx context.Context, communityID, callID, actorUserID string, next CallStatus) (Call, error) {
	member, err := s.members.Find(ctx, communityID, actorUserID)
	if err != nil || member.Disabled() {
		return Call{}, ErrForbidden
	}
	if !rbac.HasPermission(member.Role, rbac.PermDispatchManage) {
		return Call{}, ErrForbidden
	}

	call, err := s.store.Find(ctx, communityID, callID)
	if err != nil {
		return Call{}, err
	}

	res := CheckTransition(call.Status, next, rbac.IsSupervisor(member.Role))
	if !res.OK {
		switch res.Reason {
		case ReasonSupervisorOnlyCancel:
			return Call{}, ErrSupervisorOnlyCancel
		default:
			return Call{}, ErrInvalidTransition
		}
	}
	if next == call.Status {
		return call, nil
	}

	now := s.now().UTC()
	swapped, err := s.store.CompareAndSetStatus(ctx, call.ID, call.Status, next, now)
	if err != nil {
		return Call{}, err
	}
	if !swapped {
		return Call{}, ErrInvalidTransition // status moved underneath us
	}

	prev := call.Status
	call.Status = next
	call.UpdatedAt = now
	s.auditCall(ctx, call, audit.EventDispatchCallMoved, actorUserID, prev)
	return call, nil
}

// Get returns a single call.
func (s *Service) Get(ctx context.Context, communityID, callID string) (Call, error) {
	return s.store.Find(ctx, communityID, callID)
}

// List returns calls for a community, optionally filtered by status.
func (s *Service) List(ctx context.Context, communityID string, status CallStatus, limit int) ([]Call, error) {
	if limit <= 0 || limit > 200 {
		limit = 60
	}
	return s.store.List(ctx, communityID, status, limit)
}

func (s *Service) auditCall(ctx context.Context, call Call, event, actorUserID string, prev CallStatus) {
	meta := map[string]any{
		"callId": call.ID,
		"status": string(call.Status),
	}
	if prev != "" {
		meta["from"] = string(prev)
	}
	entry := &audit.Entry{
		ID:          ids.New(),
		CommunityID: call.CommunityID,
		UserID:      actorUserID,
		EventType:   event,
		TargetID:    call.ID,
		CreatedAt:   s.now().UTC(),
		Metadata:    meta,
	}
	if err := s.sink.Append(ctx, entry); err != nil {
		_ = audit.LogEvent(ctx, event, meta)
	}
}
