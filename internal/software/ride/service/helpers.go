package service

import (
	"context"
	"time"

	"hailo/internal/domain/ride"
)

// withRetry runs fn until it succeeds, fails with anything but a TransportError, or the
// policy is exhausted. Conflicts and validation failures are returned on the first attempt.
func (service *rideService) withRetry(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error) error {
	backoff := service.retry.Backoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil || !ride.IsTransport(err) || attempt >= service.retry.Attempts {
			return err
		}

		service.logger.Error(ctx, "retry_attempted", "Transient store failure, retrying", err, map[string]any{
			"operation":  op,
			"attempt":    attempt,
			"backoff_ms": backoff.Milliseconds(),
		})

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, service.retry.MaxBackoff)
	}
}

// publish notifies subscribers after a committed write. Delivery is best-effort: a failure
// is logged and left to the pollers.
func (service *rideService) publish(ctx context.Context, record *ride.Record, previous ride.Status) {
	if service.notifier == nil {
		return
	}

	update := ride.NewUpdate(record, previous)
	if err := service.notifier.Publish(ctx, update); err != nil {
		service.logger.Error(ctx, "ride_update_publish_failed", "Failed to publish ride update", err, map[string]any{
			"status":          update.Status,
			"previous_status": update.PreviousStatus,
		})
		return
	}

	service.logger.Debug(ctx, "ride_update_published", "Published ride update", map[string]any{
		"status": update.Status,
		"topics": update.Topics(),
	})
}

// appendEvent records the transition in the audit trail of the current transaction.
func (service *rideService) appendEvent(ctx context.Context, record *ride.Record, previous ride.Status) error {
	if service.rideEventRepo == nil {
		return nil
	}
	event, err := ride.TransitionEvent(record, previous)
	if err != nil {
		return err
	}
	return service.rideEventRepo.Append(ctx, event)
}
