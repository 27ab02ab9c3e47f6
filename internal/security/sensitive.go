package security

import (
	"context"
	"errors"
	"time"
)

var ErrGrantNotFound = errors.New("security: sensitive grant not found")

// SensitiveGrant is a time-boxed elevated session state. Grants are created
// by an out-of-scope re-authentication flow and consumed read-only here.
// Expiry is a wall-clock comparison at read time; nothing actively evicts.
type SensitiveGrant struct {
	UserID       string
	SessionToken string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Active reports whether the grant is still valid at the given instant.
func (g SensitiveGrant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// SensitiveGrantStore persists sensitive-mode grants keyed by session token.
type SensitiveGrantStore interface {
	Find(ctx context.Context, sessionToken string) (SensitiveGrant, error)
	Save(ctx context.Context, g SensitiveGrant) error
	Delete(ctx context.Context, sessionToken string) error
}
