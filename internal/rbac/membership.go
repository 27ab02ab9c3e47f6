package rbac

import (
	"context"
	"errors"
	"time"
)

var ErrMembershipNotFound = errors.New("rbac: membership not found")

// Membership binds a user to exactly one role inside a community.
type Membership struct {
	CommunityID string
	UserID      string
	Role        Role
	DisabledAt  *time.Time
	CreatedAt   time.Time
}

// Disabled reports whether the member's access has been revoked.
func (m Membership) Disabled() bool {
	return m.DisabledAt != nil
}

// MembershipStore resolves staff memberships.
type MembershipStore interface {
	Find(ctx context.Context, communityID, userID string) (Membership, error)
	Upsert(ctx context.Context, m *Membership) error
}
