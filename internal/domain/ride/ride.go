package ride

import (
	"strings"
	"time"

	"hailo/internal/domain/geo"
)

const (
	// DefaultEstimatedMinutes is the fixed trip estimate stored with every request.
	DefaultEstimatedMinutes = 5
	// DefaultRideType is the only ride type offered.
	DefaultRideType = "standard"
)

// Record is the shared ride request, as persisted in `ride_requests`.
type Record struct {
	ID                     string     `json:"id"`
	RiderID                string     `json:"rider_id"`
	DriverID               *string    `json:"driver_id"` // nil until accepted
	PickupLocation         string     `json:"pickup_location"`
	PickupCoordinates      geo.Point  `json:"pickup_coordinates"`
	Destination            string     `json:"destination"`
	DestinationCoordinates geo.Point  `json:"destination_coordinates"`
	RiderLocation          geo.Point  `json:"rider_location"`
	DriverLocation         *geo.Point `json:"driver_location"`
	EstimatedPrice         int        `json:"estimated_price"`
	EstimatedTime          int        `json:"estimated_time"`
	RideType               string     `json:"ride_type"`
	Status                 Status     `json:"status"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Location is a labelled place. Coordinates may be omitted for a destination.
type Location struct {
	Label       string     `json:"label"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
}

// NewRecordInput carries what a rider supplies when requesting a ride.
type NewRecordInput struct {
	RiderID       string
	Pickup        Location
	Destination   Location
	RiderLocation *geo.Point // defaults to the pickup coordinates
}

// NewRecord validates the request and builds a pending record with its fare fixed.
// The id and timestamps are assigned by the store.
func NewRecord(in NewRecordInput) (*Record, error) {
	riderID := strings.TrimSpace(in.RiderID)
	if riderID == "" {
		return nil, NewValidationError("rider_id", "is required")
	}

	pickupLabel := strings.TrimSpace(in.Pickup.Label)
	if pickupLabel == "" {
		return nil, NewValidationError("pickup", "is required")
	}
	if in.Pickup.Coordinates == nil {
		return nil, NewValidationError("pickup", "coordinates are required")
	}
	pickup := *in.Pickup.Coordinates
	if err := pickup.Validate(); err != nil {
		return nil, NewValidationError("pickup", err.Error())
	}

	destinationLabel := strings.TrimSpace(in.Destination.Label)
	if destinationLabel == "" {
		return nil, NewValidationError("destination", "is required")
	}
	destination := geo.SimulatedDestination(pickup, destinationLabel)
	if in.Destination.Coordinates != nil {
		destination = *in.Destination.Coordinates
	}
	if err := destination.Validate(); err != nil {
		return nil, NewValidationError("destination", err.Error())
	}

	riderLocation := pickup
	if in.RiderLocation != nil {
		if err := in.RiderLocation.Validate(); err != nil {
			return nil, NewValidationError("rider_location", err.Error())
		}
		riderLocation = *in.RiderLocation
	}

	return &Record{
		RiderID:                riderID,
		PickupLocation:         pickupLabel,
		PickupCoordinates:      pickup,
		Destination:            destinationLabel,
		DestinationCoordinates: destination,
		RiderLocation:          riderLocation,
		EstimatedPrice:         geo.Fare(pickup, destination),
		EstimatedTime:          DefaultEstimatedMinutes,
		RideType:               DefaultRideType,
		Status:                 StatusPending,
	}, nil
}

// Clone returns a deep copy of the record.
func (record *Record) Clone() *Record {
	if record == nil {
		return nil
	}
	out := *record
	if record.DriverID != nil {
		driverID := *record.DriverID
		out.DriverID = &driverID
	}
	if record.DriverLocation != nil {
		loc := *record.DriverLocation
		out.DriverLocation = &loc
	}
	return &out
}

// DriverIs reports whether the record is assigned to driverID.
func (record *Record) DriverIs(driverID string) bool {
	return record.DriverID != nil && *record.DriverID == driverID
}

// InvolvesActor reports whether actorID is the rider or the assigned driver.
func (record *Record) InvolvesActor(actorID string) bool {
	return record.RiderID == actorID || record.DriverIs(actorID)
}
