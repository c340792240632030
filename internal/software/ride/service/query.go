package service

import (
	"context"
	"strings"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
)

// FindActiveFor returns the actor's in-flight ride, or nil. Used to resume after a reconnect.
func (service *rideService) FindActiveFor(ctx context.Context, actorID string, role user.Role) (*ride.Record, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ride.NewValidationError("actor_id", "is required")
	}
	if !role.Valid() {
		return nil, ride.NewValidationError("role", user.ErrInvalidRole.Error())
	}

	var found *ride.Record
	err := service.withRetry(ctx, "find_active", func(ctx context.Context, _ int) error {
		var err error
		found, err = service.findActive(ctx, actorID, role)
		return err
	})
	return found, err
}

// Get returns a ride by id.
func (service *rideService) Get(ctx context.Context, rideID string) (*ride.Record, error) {
	var found *ride.Record
	err := service.withRetry(ctx, "get", func(ctx context.Context, _ int) error {
		return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			var err error
			found, err = service.rideRepo.GetByID(txCtx, rideID)
			return err
		})
	})
	return found, err
}

// ListPending returns the pending pool, newest first.
func (service *rideService) ListPending(ctx context.Context, limit int) ([]*ride.Record, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}

	var out []*ride.Record
	err := service.withRetry(ctx, "list_pending", func(ctx context.Context, _ int) error {
		return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			var err error
			out, err = service.rideRepo.ListPending(txCtx, limit)
			return err
		})
	})
	return out, err
}

// History returns the actor's most recent rides in any status.
func (service *rideService) History(ctx context.Context, actorID string, role user.Role, limit int) ([]*ride.Record, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var out []*ride.Record
	err := service.withRetry(ctx, "history", func(ctx context.Context, _ int) error {
		return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			var err error
			out, err = service.rideRepo.ListHistory(txCtx, actorID, role, limit)
			return err
		})
	})
	return out, err
}

func (service *rideService) findActive(ctx context.Context, actorID string, role user.Role) (*ride.Record, error) {
	var found *ride.Record
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		found, err = service.rideRepo.FindActive(txCtx, actorID, role)
		return err
	})
	return found, err
}
