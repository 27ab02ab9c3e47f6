package moderation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPlayerNotFound = errors.New("moderation: player not found")
	ErrCaseNotFound   = errors.New("moderation: case not found")
	ErrReportNotFound = errors.New("moderation: report not found")
	ErrNoActiveBan    = errors.New("moderation: no active ban")
	ErrWrongCommunity = errors.New("moderation: record belongs to another community")
)

// Player is the record moderation actions attach to.
type Player struct {
	ID          string
	CommunityID string
	Name        string
	Flag        string
	CreatedAt   time.Time
}

// ActionType enumerates recorded moderation actions.
type ActionType string

const (
	ActionWarning ActionType = "WARNING"
	ActionKick    ActionType = "KICK"
	ActionBanTemp ActionType = "BAN_TEMP"
	ActionBanPerm ActionType = "BAN_PERM"
	ActionNote    ActionType = "NOTE"
)

// Action is one recorded moderation action against a player.
type Action struct {
	ID              string
	CommunityID     string
	PlayerID        string
	Type            ActionType
	Reason          string
	ModeratorUserID string
	ExpiresAt       *time.Time
	RevokedAt       *time.Time
	CreatedAt       time.Time
}

// ActiveBan reports whether the action is a ban still in force.
func (a Action) ActiveBan(now time.Time) bool {
	if a.Type != ActionBanTemp && a.Type != ActionBanPerm {
		return false
	}
	if a.RevokedAt != nil {
		return false
	}
	if a.ExpiresAt != nil && !now.Before(*a.ExpiresAt) {
		return false
	}
	return true
}

// CaseStatus is the case lifecycle state.
type CaseStatus string

const (
	CaseOpen   CaseStatus = "OPEN"
	CaseClosed CaseStatus = "CLOSED"
)

// Case tracks an investigation promoted from a report.
type Case struct {
	ID              string
	CommunityID     string
	Title           string
	Status          CaseStatus
	ReportID        string
	AssigneeUserID  string
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReportStatus is the report triage state.
type ReportStatus string

const (
	ReportOpen     ReportStatus = "OPEN"
	ReportInReview ReportStatus = "IN_REVIEW"
	ReportResolved ReportStatus = "RESOLVED"
)

// Report is a player-submitted incident report.
type Report struct {
	ID               string
	CommunityID      string
	Subject          string
	Status           ReportStatus
	Resolution       string
	ResolvedByUserID string
	ResolvedAt       *time.Time
	CreatedAt        time.Time
}

// PlayerStore reads and flags player records.
type PlayerStore interface {
	Find(ctx context.Context, id string) (Player, error)
	SetFlag(ctx context.Context, id, flag string) error
}

// ActionStore persists moderation actions.
type ActionStore interface {
	Create(ctx context.Context, a *Action) error
	LatestActiveBan(ctx context.Context, communityID, playerID string, now time.Time) (Action, bool, error)
	SetExpiry(ctx context.Context, actionID string, expiresAt time.Time) error
	Revoke(ctx context.Context, actionID string, at time.Time) error
}

// CaseStore persists cases.
type CaseStore interface {
	Create(ctx context.Context, c *Case) error
	Find(ctx context.Context, communityID, id string) (Case, error)
	SetAssignee(ctx context.Context, id, assigneeUserID string, at time.Time) error
}

// ReportStore persists reports.
type ReportStore interface {
	Find(ctx context.Context, communityID, id string) (Report, error)
	Resolve(ctx context.Context, communityID, id, resolution, resolvedBy string, at time.Time) error
	SetStatus(ctx context.Context, communityID, id string, status ReportStatus) error
}
