package ports

import (
	"context"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
)

// ----- DTOs for Ride Service -----

// CreateRideInput is the input required to create a ride.
type CreateRideInput struct {
	RiderID       string
	Pickup        ride.Location
	Destination   ride.Location
	RiderLocation *geo.Point
}

// AcceptRideInput is the input of a driver accepting a pending ride.
type AcceptRideInput struct {
	RideID         string
	DriverID       string
	DriverLocation *geo.Point
}

// ----- Ride Service Interface -----

// RideService holds the only entry points that mutate ride records. Mutations are retried
// on TransportError and never on ConflictError. Each successful write publishes one update.
type RideService interface {
	Create(ctx context.Context, in CreateRideInput) (*ride.Record, error)
	Accept(ctx context.Context, in AcceptRideInput) (*ride.Record, error)
	ConfirmPickup(ctx context.Context, rideID string) (*ride.Record, error)
	CompleteRide(ctx context.Context, rideID string) (*ride.Record, error)
	Cancel(ctx context.Context, rideID string) (*ride.Record, error)
	FindActiveFor(ctx context.Context, actorID string, role user.Role) (*ride.Record, error)

	Get(ctx context.Context, rideID string) (*ride.Record, error)
	ListPending(ctx context.Context, limit int) ([]*ride.Record, error)
	History(ctx context.Context, actorID string, role user.Role, limit int) ([]*ride.Record, error)
}
