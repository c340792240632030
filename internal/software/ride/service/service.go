package service

import (
	"time"

	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// RetryPolicy bounds the retries of a mutation that failed with a TransportError.
type RetryPolicy struct {
	Attempts   int           // total attempts, including the first
	Backoff    time.Duration // delay before the second attempt, doubled each time
	MaxBackoff time.Duration
}

// DefaultRetryPolicy is used when NewRideService gets a zero policy.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}

const (
	defaultPendingLimit = 50
	defaultHistoryLimit = 20

	// re-reads allowed when a conditional write loses to a concurrent writer
	maxCompareAttempts = 3
)

// rideService encapsulates the ride record mutations and their notifications.
type rideService struct {
	logger        *logger.Logger
	uow           ports.UnitOfWork
	rideRepo      ports.RideRepository
	rideEventRepo ports.RideEventRepository
	notifier      ports.Notifier
	retry         RetryPolicy
}

// NewRideService creates a RideService over the given store and notifier.
func NewRideService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	rideRepo ports.RideRepository,
	rideEventRepo ports.RideEventRepository,
	notifier ports.Notifier,
	retry RetryPolicy,
) ports.RideService {
	if retry.Attempts < 1 {
		retry = DefaultRetryPolicy
	}
	if retry.MaxBackoff < retry.Backoff {
		retry.MaxBackoff = retry.Backoff
	}
	return &rideService{
		logger:        logger,
		uow:           uow,
		rideRepo:      rideRepo,
		rideEventRepo: rideEventRepo,
		notifier:      notifier,
		retry:         retry,
	}
}
