package command

import (
	"context"
	"errors"
	"time"
)

// Toggle is a per-community enable/disable override for one command.
// Absence of a toggle means the command is enabled.
type Toggle struct {
	CommunityID string
	CommandID   string
	Enabled     bool
	UpdatedBy   string
	UpdatedAt   time.Time
}

var ErrToggleNotFound = errors.New("command: toggle not found")

// ToggleStore reads and overwrites command toggles. Writes are
// last-write-wins; the caller audits them.
type ToggleStore interface {
	Find(ctx context.Context, communityID, commandID string) (Toggle, error)
	Set(ctx context.Context, t Toggle) error
	List(ctx context.Context, communityID string) ([]Toggle, error)
}

// IsEnabled resolves the effective toggle state with default-enabled
// semantics: a missing toggle never blocks a command.
func IsEnabled(ctx context.Context, store ToggleStore, communityID, commandID string) (bool, error) {
	t, err := store.Find(ctx, communityID, commandID)
	if errors.Is(err, ErrToggleNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return t.Enabled, nil
}
