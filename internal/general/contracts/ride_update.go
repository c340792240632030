package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"hailo/internal/domain/ride"
)

// RideUpdateMessage is the broker payload of a ride change notification.
type RideUpdateMessage struct {
	ride.Update
	Envelope
}

// EncodeRideUpdate wraps update in an envelope and marshals it.
func EncodeRideUpdate(update ride.Update, correlationID string) ([]byte, error) {
	return json.Marshal(RideUpdateMessage{
		Update: update,
		Envelope: Envelope{
			CorrelationID: correlationID,
			Producer:      ProducerRideService,
			SentAt:        time.Now().UTC(),
		},
	})
}

// DecodeRideUpdate parses a broker payload and rejects messages without a ride id or a
// known status.
func DecodeRideUpdate(body []byte) (RideUpdateMessage, error) {
	var msg RideUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return RideUpdateMessage{}, fmt.Errorf("decode ride update: %w", err)
	}
	if msg.RideID == "" {
		return RideUpdateMessage{}, fmt.Errorf("decode ride update: %w", ride.ErrRideIDRequired)
	}
	if !msg.Status.Valid() {
		return RideUpdateMessage{}, fmt.Errorf("decode ride update: %w", ride.ErrInvalidStatus)
	}
	return msg, nil
}
