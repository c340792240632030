package contracts

import (
	"encoding/json"
	"time"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
)

// Outbound WebSocket message types.
const (
	WSTypeRideTransition = "ride_transition"
	WSTypePendingRides   = "pending_rides"
	WSTypeSnapshot       = "snapshot"
	WSTypeError          = "error"
	WSTypePong           = "pong"
)

// Error codes sent in WSError.
const (
	CodeRideAlreadyTaken = "ride_already_taken"
	CodeDriverBusy       = "driver_busy"
	CodeConflict         = "conflict"
	CodeValidation       = "validation_failed"
	CodeNotFound         = "not_found"
	CodeUnavailable      = "temporarily_unavailable"
	CodeInternal         = "internal_error"
	CodeBadMessage       = "bad_message"
)

// WSInbound is the {type, data} frame every client command arrives in.
type WSInbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WSRideTransition is pushed once per accepted forward transition.
type WSRideTransition struct {
	Type   string              `json:"type"` // "ride_transition"
	RideID string              `json:"ride_id,omitempty"`
	State  ride.ProjectedState `json:"state"`
	Status ride.Status         `json:"status,omitempty"`
	Ride   *ride.Record        `json:"ride,omitempty"`
	SentAt time.Time           `json:"sent_at"`
}

// WSPendingRides is the driver's current view of the pending pool.
type WSPendingRides struct {
	Type   string         `json:"type"` // "pending_rides"
	Rides  []*ride.Record `json:"rides"`
	SentAt time.Time      `json:"sent_at"`
}

// WSSnapshot answers "refresh" and is sent right after authentication.
type WSSnapshot struct {
	Type   string              `json:"type"` // "snapshot"
	State  ride.ProjectedState `json:"state"`
	Ride   *ride.Record        `json:"ride,omitempty"`
	Stale  bool                `json:"stale"`
	SentAt time.Time           `json:"sent_at"`
}

// WSError reports a failed command.
type WSError struct {
	Type    string `json:"type"` // "error"
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WSRequestRide is the data of the rider "request_ride" command.
type WSRequestRide struct {
	Pickup        ride.Location `json:"pickup"`
	Destination   ride.Location `json:"destination"`
	RiderLocation *geo.Point    `json:"rider_location,omitempty"`
}

// WSRideRef is the data of commands that name a ride.
type WSRideRef struct {
	RideID         string     `json:"ride_id"`
	DriverLocation *geo.Point `json:"driver_location,omitempty"`
}
