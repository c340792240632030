package ride

import (
	"errors"
	"strings"
)

// Status is the shared lifecycle status of a ride request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// ActiveStatuses are the non-terminal statuses, in lifecycle order.
var ActiveStatuses = []Status{StatusPending, StatusAccepted, StatusInProgress}

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo reports whether next is a direct edge of the lifecycle graph.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusPending:
		return next == StatusAccepted || next == StatusCancelled

	case StatusAccepted:
		return next == StatusInProgress || next == StatusCancelled

	case StatusInProgress:
		return next == StatusCompleted

	default:
		return false
	}
}

// Reaches reports whether next lies strictly ahead of status in the lifecycle graph,
// through any number of edges. The zero status reaches every valid status.
func (status Status) Reaches(next Status) bool {
	if !next.Valid() {
		return false
	}
	if status == "" {
		return true
	}
	for _, step := range successors(status) {
		if step == next || step.Reaches(next) {
			return true
		}
	}
	return false
}

// Terminal indicates if the status is in a terminal/completed state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Active reports whether the ride still expects writes.
func (status Status) Active() bool {
	return status == StatusPending || status == StatusAccepted || status == StatusInProgress
}

// Cancellable reports whether cancel is allowed from status.
func (status Status) Cancellable() bool {
	return status == StatusPending || status == StatusAccepted
}

func successors(status Status) []Status {
	switch status {
	case StatusPending:
		return []Status{StatusAccepted, StatusCancelled}
	case StatusAccepted:
		return []Status{StatusInProgress, StatusCancelled}
	case StatusInProgress:
		return []Status{StatusCompleted}
	default:
		return nil
	}
}
