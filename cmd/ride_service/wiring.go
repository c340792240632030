package rideservice

import (
	"context"
	"errors"
	"fmt"

	"hailo/internal/general/config"
	"hailo/internal/general/logger"
	"hailo/internal/general/memory"
	"hailo/internal/general/notify"
	"hailo/internal/general/postgres"
	"hailo/internal/general/rabbitmq"
	"hailo/internal/general/redisbus"
	"hailo/internal/ports"
)

// store bundles the repositories of the selected store driver.
type store struct {
	uow    ports.UnitOfWork
	rides  ports.RideRepository
	events ports.RideEventRepository
	ping   func(ctx context.Context) error
	close  func()
}

// openStore connects the ride record store named by cfg.Store.Driver.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &store{
			uow:    postgres.NewUnitOfWork(pool),
			rides:  postgres.NewRideRepo(),
			events: postgres.NewRideEventRepo(),
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil

	case config.StoreMemory:
		log.Info(ctx, "memory_store_selected", "Ride records are kept in process memory", nil)
		return &store{
			uow:    memory.NewUnitOfWork(),
			rides:  memory.NewRideRepo(),
			events: memory.NewEventRepo(),
			close:  func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// bus is the change notifier of the selected driver plus its teardown.
type bus struct {
	notifier ports.Notifier
	ping     func(ctx context.Context) error
	close    func()
}

// openNotifier connects the change notifier named by cfg.Notifier.Driver.
func openNotifier(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bus, error) {
	switch cfg.Notifier.Driver {
	case config.NotifierRabbitMQ:
		client, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &bus{notifier: rabbitmq.NewNotifier(client, log), close: client.Close}, nil

	case config.NotifierRedis:
		client, err := redisbus.Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &bus{
			notifier: redisbus.NewNotifier(client, log),
			ping:     func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:    func() { _ = client.Close() },
		}, nil

	case config.NotifierMemory:
		hub := notify.NewHub(log)
		return &bus{notifier: hub, close: func() { _ = hub.Close() }}, nil

	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}
}

// healthCheck pings every dependency that can be pinged.
func healthCheck(checks ...func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var errs []error
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
