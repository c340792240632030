package ports

import (
	"context"

	"hailo/internal/domain/ride"
)

// Notifier delivers ride updates to subscribers of a topic (ride.TopicForRide or
// ride.TopicPendingPool). Delivery is best-effort: at most once per publish, no ordering
// across topics, and subscribers must tolerate gaps.
type Notifier interface {
	Publish(ctx context.Context, update ride.Update) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is released with Close; after Close returns nothing more is delivered
// and Updates is closed.
type Subscription interface {
	Updates() <-chan ride.Update
	Close() error
}
