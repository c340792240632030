package lifecycle

import (
	"time"

	"hailo/internal/domain/ride"
)

// Channel names the source that delivered an observation.
type Channel string

const (
	ChannelPush  Channel = "push"  // notifier update
	ChannelPoll  Channel = "poll"  // scheduler tick
	ChannelFetch Channel = "fetch" // explicit read: mutation result, resume or manual refresh
)

// Observation is one status value seen for a ride, from any channel.
type Observation struct {
	RideID   string
	Status   ride.Status
	DriverID *string
	Channel  Channel
	At       time.Time
}

// ObserveRecord turns a freshly read record into an observation.
func ObserveRecord(record *ride.Record, channel Channel) Observation {
	obs := Observation{
		RideID:  record.ID,
		Status:  record.Status,
		Channel: channel,
		At:      time.Now().UTC(),
	}
	if record.DriverID != nil {
		driverID := *record.DriverID
		obs.DriverID = &driverID
	}
	return obs
}

// ObserveUpdate turns a notifier update into an observation.
func ObserveUpdate(update ride.Update) Observation {
	return Observation{
		RideID:   update.RideID,
		Status:   update.Status,
		DriverID: update.DriverID,
		Channel:  ChannelPush,
		At:       time.Now().UTC(),
	}
}
