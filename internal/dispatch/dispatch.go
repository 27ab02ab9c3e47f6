package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"
)

// CallStatus is the dispatch call lifecycle state.
type CallStatus string

const (
	StatusOpen      CallStatus = "OPEN"
	StatusAssigned  CallStatus = "ASSIGNED"
	StatusEnroute   CallStatus = "ENROUTE"
	StatusOnScene   CallStatus = "ON_SCENE"
	StatusCleared   CallStatus = "CLEARED"
	StatusCancelled CallStatus = "CANCELLED"
)

// ParseCallStatus normalizes a wire value.
func ParseCallStatus(s string) (CallStatus, error) {
	switch CallStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusAssigned:
		return StatusAssigned, nil
	case StatusEnroute:
		return StatusEnroute, nil
	case StatusOnScene:
		return StatusOnScene, nil
	case StatusCleared:
		return StatusCleared, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", errors.New("dispatch: unknown call status")
	}
}

// Reason identifies why a transition was refused.
type Reason string

const (
	ReasonInvalidTransition    Reason = "invalid_transition"
	ReasonSupervisorOnlyCancel Reason = "supervisor_only_cancel"
)

// CheckResult is the outcome of a pure transition check.
type CheckResult struct {
	OK     bool
	Reason Reason
}

// transitions lists the edges open to any moderation role. CANCELLED from
// ON_SCENE or a settled state is deliberately absent: those cancellations
// are supervisor-gated.
var transitions = map[CallStatus][]CallStatus{
	StatusOpen:      {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusEnroute, StatusOpen, StatusCancelled},
	StatusEnroute:   {StatusOnScene, StatusCancelled},
	StatusOnScene:   {StatusCleared},
	StatusCleared:   {},
	StatusCancelled: {},
}

func terminal(s CallStatus) bool {
	return s == StatusCleared || s == StatusCancelled
}

func tableAllows(current, next CallStatus) bool {
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition decides whether a status change is legal. Pure function;
// the caller performs the atomic read-modify-write against the store.
//
// The supervisor guard runs before the terminal shortcut: cancelling a
// CLEARED call as a non-supervisor reports supervisor_only_cancel, not
// invalid_transition. Supervisors may also cancel from ON_SCENE or a settled
// state, and reopen a settled call.
func CheckTransition(current, next CallStatus, supervisor bool) CheckResult {
	if next == current {
		return CheckResult{OK: true}
	}

	if next == StatusCancelled {
		if supervisor {
			return CheckResult{OK: true}
		}
		if tableAllows(current, StatusCancelled) {
			return CheckResult{OK: true}
		}
		return CheckResult{Reason: ReasonSupervisorOnlyCancel}
	}

	if terminal(current) {
		if supervisor && next == StatusOpen {
			return CheckResult{OK: true} // explicit reopen path
		}
		if !supervisor {
			return CheckResult{Reason: ReasonSupervisorOnlyCancel}
		}
		return CheckResult{Reason: ReasonInvalidTransition}
	}

	if !tableAllows(current, next) {
		return CheckResult{Reason: ReasonInvalidTransition}
	}
	return CheckResult{OK: true}
}

// Call is a dispatch call record. Status is the only field this package
// governs; everything else is carried for observers.
type Call struct {
	ID              string
	CommunityID     string
	Title           string
	Priority        int
	Status          CallStatus
	LocationName    string
	AssignedUnitIDs []string
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var ErrCallNotFound = errors.New("dispatch: call not found")

// Store persists dispatch calls. CompareAndSetStatus must be atomic on the
// status column, mirroring the approval store contract.
type Store interface {
	Create(ctx context.Context, c *Call) error
	Find(ctx context.Context, communityID, id string) (Call, error)
	List(ctx context.Context, communityID string, status CallStatus, limit int) ([]Call, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to CallStatus, at time.Time) (bool, error)
}
