package memory

import (
	"context"
	"sync"

	"hailo/internal/domain/ride"
	"hailo/internal/ports"

	"github.com/google/uuid"
)

// EventRepo is an append-only in-memory audit trail.
type EventRepo struct {
	mu     sync.Mutex
	events []ride.Event
}

// NewEventRepo constructs an empty audit trail.
func NewEventRepo() *EventRepo {
	return &EventRepo{}
}

var _ ports.RideEventRepository = (*EventRepo)(nil)

// Append stores a copy of event and assigns its id.
func (repo *EventRepo) Append(ctx context.Context, event *ride.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	event.ID = uuid.NewString()
	repo.events = append(repo.events, *event)
	return nil
}

// ForRide returns the event types recorded for rideID, oldest first.
func (repo *EventRepo) ForRide(rideID string) []ride.EventType {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var out []ride.EventType
	for _, event := range repo.events {
		if event.RideID == rideID {
			out = append(out, event.Type)
		}
	}
	return out
}
