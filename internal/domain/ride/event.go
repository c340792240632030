package ride

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"
)

// Event is one row of the `ride_events` audit trail.
type Event struct {
	ID        string
	CreatedAt time.Time
	RideID    string
	Type      EventType
	Data      map[string]any
}

var (
	ErrRideIDRequired = errors.New("ride id is required")
	ErrEventDataNil   = errors.New("event data must not be nil")
)

// NewEvent constructs an audit event.
func NewEvent(rideID string, eventType EventType, eventData map[string]any) (*Event, error) {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return nil, ErrRideIDRequired
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if eventData == nil {
		return nil, ErrEventDataNil
	}

	data := make(map[string]any, len(eventData))
	maps.Copy(data, eventData)

	return &Event{
		RideID:    rideID,
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TransitionEvent describes a status change of record.
func TransitionEvent(record *Record, previous Status) (*Event, error) {
	data := map[string]any{
		"status":          record.Status.String(),
		"previous_status": previous.String(),
	}
	if record.DriverID != nil {
		data["driver_id"] = *record.DriverID
	}
	return NewEvent(record.ID, EventFor(record.Status), data)
}

// DataJSON returns event.Data encoded as JSON.
func (event *Event) DataJSON() ([]byte, error) {
	if event.Data == nil {
		return nil, ErrEventDataNil
	}
	return json.Marshal(event.Data)
}
