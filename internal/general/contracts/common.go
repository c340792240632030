package contracts

import "time"

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // request id of the write that caused the message
	Producer      string    `json:"producer,omitempty"`       // e.g. "ride-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // UTC send time
}
