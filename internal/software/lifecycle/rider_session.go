package lifecycle

import (
	"context"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/ports"
)

// RideRequest is what a rider submits; the rider id comes from the session.
type RideRequest struct {
	Pickup        ride.Location
	Destination   ride.Location
	RiderLocation *geo.Point
}

// RiderSession follows the rider's ride from request to completion or cancellation.
type RiderSession struct {
	*session
}

// NewRiderSession creates an idle rider session. onTransition may be nil.
func NewRiderSession(riderID string, deps Deps, onTransition TransitionFunc) *RiderSession {
	return &RiderSession{session: newSession(riderID, user.RoleRider, deps, ride.RiderIdle, onTransition)}
}

// RequestRide creates a pending ride and attaches to it.
func (s *RiderSession) RequestRide(ctx context.Context, req RideRequest) (*ride.Record, error) {
	record, err := s.service.Create(ctx, ports.CreateRideInput{
		RiderID:       s.actorID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		RiderLocation: req.RiderLocation,
	})
	if err != nil {
		return nil, err
	}
	if err := s.attach(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Cancel cancels the attached ride while it is pending or accepted.
func (s *RiderSession) Cancel(ctx context.Context) (*ride.Record, error) {
	return s.mutateAttached(ctx, s.service.Cancel)
}

// ConfirmPickup lets the rider confirm being picked up.
func (s *RiderSession) ConfirmPickup(ctx context.Context) (*ride.Record, error) {
	return s.mutateAttached(ctx, s.service.ConfirmPickup)
}

// ConfirmDropoff completes the ride from the rider side.
func (s *RiderSession) ConfirmDropoff(ctx context.Context) (*ride.Record, error) {
	return s.mutateAttached(ctx, s.service.CompleteRide)
}

// Resume re-attaches to the rider's in-flight ride after a reconnect. It returns nil when
// there is none.
func (s *RiderSession) Resume(ctx context.Context) (*ride.Record, error) {
	return s.resume(ctx)
}

// Refresh re-reads the attached ride and applies it.
func (s *RiderSession) Refresh(ctx context.Context) (*ride.Record, error) {
	return s.refresh(ctx)
}

func (s *RiderSession) Snapshot() Snapshot {
	return s.snapshot()
}

// Close releases the session. Idempotent.
func (s *RiderSession) Close() {
	s.close()
}
