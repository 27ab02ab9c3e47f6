package approval

import (
	"context"
	"errors"
	"time"

	"wardenhq.org/internal/command"
)

// Status is the approval lifecycle state. PENDING is the only non-terminal
// state; a request transitions exactly once and is never re-opened.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Decision is a resolver's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

var (
	ErrNotFound               = errors.New("approval: not found")
	ErrNotPending             = errors.New("approval: not pending")
	ErrSelfApproval           = errors.New("approval: self approval forbidden")
	ErrInsufficientPermission = errors.New("approval: insufficient permission")
	ErrExpired                = errors.New("approval: expired")
)

// Request is the persisted record of a deferred command awaiting a second
// approver.
type Request struct {
	ID                string
	CommunityID       string
	CommandID         string
	Risk              command.RiskLevel
	Payload           command.Payload
	RequestedByUserID string
	Status            Status
	CreatedAt         time.Time
	ExpiresAt         time.Time
	ResolvedByUserID  string
	ResolvedAt        *time.Time
}

// Store persists approval requests. CompareAndResolve must be atomic on the
// status column: of two concurrent calls for the same id exactly one may
// observe PENDING and win.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Find(ctx context.Context, id string) (Request, error)
	CompareAndResolve(ctx context.Context, id string, to Status, resolvedBy string, at time.Time) (bool, error)
	ListPending(ctx context.Context, communityID string) ([]Request, error)
	// RecentPendingSince returns the newest PENDING request created by the
	// user at or after the given instant.
	RecentPendingSince(ctx context.Context, communityID, userID string, since time.Time) (Request, bool, error)
	// ExpiredPending returns PENDING requests whose deadline passed before now.
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]Request, error)
}
