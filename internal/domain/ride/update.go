package ride

import (
	"fmt"
	"time"
)

const (
	// TopicPendingPool carries every change that adds to or removes from the pending pool.
	TopicPendingPool = "ride.pool.pending"

	topicRidePrefix = "ride.update."
)

// Update is the change notification published after every successful write.
type Update struct {
	RideID         string    `json:"ride_id"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	DriverID       *string   `json:"driver_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewUpdate builds the notification for record after a move from previous.
func NewUpdate(record *Record, previous Status) Update {
	update := Update{
		RideID:         record.ID,
		Status:         record.Status,
		PreviousStatus: previous,
		OccurredAt:     record.UpdatedAt,
	}
	if record.DriverID != nil {
		driverID := *record.DriverID
		update.DriverID = &driverID
	}
	if update.OccurredAt.IsZero() {
		update.OccurredAt = time.Now().UTC()
	}
	return update
}

// TopicForRide is the per-record topic name.
func TopicForRide(rideID string) string {
	return topicRidePrefix + rideID
}

// Topics lists every topic the update must be delivered on.
func (update Update) Topics() []string {
	topics := []string{TopicForRide(update.RideID)}
	if update.Status == StatusPending || update.PreviousStatus == StatusPending {
		topics = append(topics, TopicPendingPool)
	}
	return topics
}

func (update Update) String() string {
	return fmt.Sprintf("ride %s: %s -> %s", update.RideID, update.PreviousStatus, update.Status)
}
