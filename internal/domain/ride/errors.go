package ride

import (
	"errors"
	"fmt"
)

var (
	// ErrRideNotFound is returned when no record exists for an id.
	ErrRideNotFound = errors.New("ride not found")

	// ErrStaleObservation marks an observation that does not advance the local projection.
	// It never reaches the user.
	ErrStaleObservation = errors.New("stale observation")
)

// ValidationError rejects input before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Conflict reasons shared by the stores and the service.
const (
	ReasonRideTaken   = "ride already taken"
	ReasonUnavailable = "ride is no longer available"
	ReasonDriverBusy  = "driver already has an active ride"
	ReasonRiderBusy   = "rider already has an active ride"
)

// ConflictError reports a failed precondition on a conditional write.
type ConflictError struct {
	RideID   string
	Expected []Status
	Actual   Status
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ride %s conflict: %s", e.RideID, e.Reason)
	}
	return fmt.Sprintf("ride %s conflict: expected status in %v, found %q", e.RideID, e.Expected, e.Actual)
}

// TransportError wraps a network or store failure. The failed operation is safe to retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps err for op; nil stays nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err carries a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsRideTaken reports whether err is a conflict lost to another driver on the same ride.
func IsRideTaken(err error) bool {
	var target *ConflictError
	return errors.As(err, &target) && target.Reason == ReasonRideTaken
}
