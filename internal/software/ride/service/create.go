package service

import (
	"context"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// Create validates the request, fixes the fare and stores a pending ride.
func (service *rideService) Create(ctx context.Context, in ports.CreateRideInput) (*ride.Record, error) {
	ctx = logger.WithActorID(ctx, in.RiderID)

	draft, err := ride.NewRecord(ride.NewRecordInput{
		RiderID:       in.RiderID,
		Pickup:        in.Pickup,
		Destination:   in.Destination,
		RiderLocation: in.RiderLocation,
	})
	if err != nil {
		service.logger.Debug(ctx, "ride_request_rejected", "Ride request failed validation", map[string]any{"reason": err.Error()})
		return nil, err
	}

	var created *ride.Record
	err = service.withRetry(ctx, "create", func(ctx context.Context, attempt int) error {
		record := draft.Clone()
		err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			if err := service.rideRepo.Create(txCtx, record); err != nil {
				return err
			}
			return service.appendEvent(txCtx, record, "")
		})
		if err == nil {
			created = record
			return nil
		}

		// an earlier attempt may have committed before its transport failed
		if attempt > 1 && ride.IsConflict(err) {
			if existing, lookupErr := service.findActive(ctx, in.RiderID, user.RoleRider); lookupErr == nil && sameRequest(existing, draft) {
				created = existing
				return nil
			}
		}
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "ride_request_failed", "Failed to create ride request", err, nil)
		return nil, err
	}

	ctx = logger.WithRideID(ctx, created.ID)
	service.logger.Info(ctx, "ride_requested", "Ride request created", map[string]any{
		"pickup":          created.PickupLocation,
		"destination":     created.Destination,
		"estimated_price": created.EstimatedPrice,
	})

	service.publish(ctx, created, "")
	return created, nil
}

func sameRequest(existing, draft *ride.Record) bool {
	return existing != nil &&
		existing.Status == ride.StatusPending &&
		existing.PickupLocation == draft.PickupLocation &&
		existing.Destination == draft.Destination &&
		existing.EstimatedPrice == draft.EstimatedPrice
}
