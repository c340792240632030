package ports

import (
	"context"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StatusChange is the input of the conditional write primitive: move RideID to To only if
// its current status is one of From.
type StatusChange struct {
	RideID         string
	From           []ride.Status
	To             ride.Status
	DriverID       *string    // set on accept only
	DriverLocation *geo.Point // optional, set on accept only
}

// RideRepository persists ride records. Every status mutation goes through
// CompareAndSetStatus, which is atomic with respect to concurrent writers.
type RideRepository interface {
	// Create assigns id and timestamps and stores record. It fails with ConflictError
	// when the rider already has an active ride.
	Create(ctx context.Context, record *ride.Record) error

	// GetByID returns ride.ErrRideNotFound when no record exists.
	GetByID(ctx context.Context, id string) (*ride.Record, error)

	// CompareAndSetStatus applies change when the precondition holds and reports applied=true.
	// When it does not hold, the current record is returned with applied=false.
	CompareAndSetStatus(ctx context.Context, change StatusChange) (record *ride.Record, applied bool, err error)

	// FindActive returns the newest active ride of the actor, or nil when there is none.
	FindActive(ctx context.Context, actorID string, role user.Role) (*ride.Record, error)

	// ListPending returns pending rides, newest first.
	ListPending(ctx context.Context, limit int) ([]*ride.Record, error)

	// ListHistory returns the actor's rides in any status, newest first.
	ListHistory(ctx context.Context, actorID string, role user.Role, limit int) ([]*ride.Record, error)
}

// RideEventRepository appends to the ride audit trail.
type RideEventRepository interface {
	Append(ctx context.Context, event *ride.Event) error
}
