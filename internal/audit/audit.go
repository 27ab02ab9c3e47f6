package audit

import (
	"context"
	"errors"
	"time"

	"wardenhq.org/internal/command"
)

// Event names recorded by the engine. The catalog is append-only.
const (
	EventCommandExecuted      = "command.executed"
	EventCommandDenied        = "command.denied"
	EventCommandToggled       = "command.toggled"
	EventApprovalRequested    = "approval.requested"
	EventApprovalDecided      = "approval.decided"
	EventApprovalExpired      = "approval.expired"
	EventExecutionFailed      = "command.execution_failed"
	EventSettingsUpdated      = "settings.updated"
	EventSensitiveModeEnabled = "sensitive_mode.enabled"
	EventSensitiveModeDisable = "sensitive_mode.disabled"
	EventDispatchCallCreated  = "dispatch.call.created"
	EventDispatchCallMoved    = "dispatch.call.status_changed"
)

// ErrUnavailable reports that the sink could not persist an entry. The
// pipeline treats it as fail-closed for CRITICAL commands.
var ErrUnavailable = errors.New("audit: sink unavailable")

// Entry is one append-only audit record. Entries are never updated or
// deleted by the engine.
type Entry struct {
	ID          string            `json:"id"`
	CommunityID string            `json:"communityId"`
	UserID      string            `json:"userId,omitempty"`
	EventType   string            `json:"eventType"`
	TargetID    string            `json:"targetId,omitempty"`
	Risk        command.RiskLevel `json:"riskLevel,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// Store is the append-only decision log plus the single advisory read the
// elevation gate needs.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	// LastCommandExecution returns the newest command.executed entry for the
	// (user, risk tier) pair. ok is false when none exists.
	LastCommandExecution(ctx context.Context, communityID, userID string, risk command.RiskLevel) (time.Time, bool, error)
	List(ctx context.Context, communityID string, limit int) ([]Entry, error)
}
