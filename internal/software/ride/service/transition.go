package service

import (
	"context"
	"strings"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// outcome is what a mutation decides to do with the record it just read.
type outcome int

const (
	apply    outcome = iota // conditional write from the observed status
	done                    // target already holds for this actor; succeed without writing
	conflict                // the ride moved on; report ConflictError
)

// mutation describes one lifecycle step.
type mutation struct {
	op             string
	action         string // log action on success
	to             ride.Status
	driverID       *string
	driverLocation *geo.Point
	decide         func(current *ride.Record) (outcome, string)
}

// Accept assigns the driver to a pending ride. Losing the race yields a ConflictError.
func (service *rideService) Accept(ctx context.Context, in ports.AcceptRideInput) (*ride.Record, error) {
	driverID := strings.TrimSpace(in.DriverID)
	if driverID == "" {
		return nil, ride.NewValidationError("driver_id", "is required")
	}
	if in.DriverLocation != nil {
		if err := in.DriverLocation.Validate(); err != nil {
			return nil, ride.NewValidationError("driver_location", err.Error())
		}
	}
	ctx = logger.WithActorID(ctx, driverID)

	return service.mutate(ctx, in.RideID, mutation{
		op:             "accept",
		action:         "ride_accepted",
		to:             ride.StatusAccepted,
		driverID:       &driverID,
		driverLocation: in.DriverLocation,
		decide: func(current *ride.Record) (outcome, string) {
			switch {
			case current.Status == ride.StatusPending:
				return apply, ""
			case current.Status == ride.StatusAccepted && current.DriverIs(driverID):
				return done, ""
			case current.DriverID != nil && !current.DriverIs(driverID):
				return conflict, ride.ReasonRideTaken
			default:
				return conflict, ride.ReasonUnavailable
			}
		},
	})
}

// ConfirmPickup moves an accepted ride to in_progress.
func (service *rideService) ConfirmPickup(ctx context.Context, rideID string) (*ride.Record, error) {
	return service.mutate(ctx, rideID, mutation{
		op:     "confirm_pickup",
		action: "ride_started",
		to:     ride.StatusInProgress,
		decide: func(current *ride.Record) (outcome, string) {
			switch current.Status {
			case ride.StatusAccepted:
				return apply, ""
			case ride.StatusInProgress:
				return done, ""
			default:
				return conflict, "pickup can only be confirmed on an accepted ride"
			}
		},
	})
}

// CompleteRide moves an in_progress ride to completed.
func (service *rideService) CompleteRide(ctx context.Context, rideID string) (*ride.Record, error) {
	return service.mutate(ctx, rideID, mutation{
		op:     "complete",
		action: "ride_completed",
		to:     ride.StatusCompleted,
		decide: func(current *ride.Record) (outcome, string) {
			switch current.Status {
			case ride.StatusInProgress:
				return apply, ""
			case ride.StatusCompleted:
				return done, ""
			default:
				return conflict, "only a ride in progress can be completed"
			}
		},
	})
}

// Cancel ends a pending or accepted ride.
func (service *rideService) Cancel(ctx context.Context, rideID string) (*ride.Record, error) {
	return service.mutate(ctx, rideID, mutation{
		op:     "cancel",
		action: "ride_cancelled",
		to:     ride.StatusCancelled,
		decide: func(current *ride.Record) (outcome, string) {
			switch {
			case current.Status.Cancellable():
				return apply, ""
			case current.Status == ride.StatusCancelled:
				return done, ""
			default:
				return conflict, "ride can no longer be cancelled"
			}
		},
	})
}

// mutate reads the record, lets m decide, and writes conditionally on the status it read.
// A lost compare re-reads and decides again; transport failures are retried by withRetry.
func (service *rideService) mutate(ctx context.Context, rideID string, m mutation) (*ride.Record, error) {
	rideID = strings.TrimSpace(rideID)
	if rideID == "" {
		return nil, ride.NewValidationError("ride_id", "is required")
	}
	ctx = logger.WithRideID(ctx, rideID)

	var (
		result   *ride.Record
		previous ride.Status
		written  bool
	)

	err := service.withRetry(ctx, m.op, func(ctx context.Context, _ int) error {
		written = false
		return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			current, err := service.rideRepo.GetByID(txCtx, rideID)
			if err != nil {
				return err
			}

			for attempt := 1; ; attempt++ {
				verdict, reason := m.decide(current)
				switch verdict {
				case done:
					result = current
					return nil
				case conflict:
					return &ride.ConflictError{
						RideID:   rideID,
						Expected: predecessors(m.to),
						Actual:   current.Status,
						Reason:   reason,
					}
				}

				if attempt > maxCompareAttempts {
					return &ride.ConflictError{RideID: rideID, Actual: current.Status, Reason: "concurrent updates, try again"}
				}

				next, applied, err := service.rideRepo.CompareAndSetStatus(txCtx, ports.StatusChange{
					RideID:         rideID,
					From:           []ride.Status{current.Status},
					To:             m.to,
					DriverID:       m.driverID,
					DriverLocation: m.driverLocation,
				})
				if err != nil {
					return err
				}
				if applied {
					previous, result, written = current.Status, next, true
					return service.appendEvent(txCtx, next, previous)
				}
				current = next
			}
		})
	})
	if err != nil {
		if ride.IsConflict(err) {
			service.logger.Info(ctx, m.op+"_conflict", "Conditional write rejected", map[string]any{"reason": err.Error()})
		} else {
			service.logger.Error(ctx, m.op+"_failed", "Ride mutation failed", err, nil)
		}
		return nil, err
	}

	if !written {
		service.logger.Debug(ctx, m.op+"_noop", "Target status already holds", map[string]any{"status": result.Status})
		return result, nil
	}

	service.logger.Info(ctx, m.action, "Ride status changed", map[string]any{
		"from": previous,
		"to":   result.Status,
	})
	service.publish(ctx, result, previous)
	return result, nil
}

// predecessors lists the statuses with a direct edge into to.
func predecessors(to ride.Status) []ride.Status {
	var out []ride.Status
	for _, status := range []ride.Status{ride.StatusPending, ride.StatusAccepted, ride.StatusInProgress} {
		if status.CanTransitionTo(to) {
			out = append(out, status)
		}
	}
	return out
}
