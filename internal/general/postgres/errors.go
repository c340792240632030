package postgres

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"hailo/internal/domain/ride"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeAdminShutdown        = "57P01"
	codeTooManyConnections   = "53300"

	constraintActiveRider  = "ride_requests_one_active_per_rider"
	constraintActiveDriver = "ride_requests_one_active_per_driver"
)

// classify maps a pgx error onto the ride error taxonomy. Network failures, connection
// exceptions (class 08) and serialization/deadlock aborts become TransportError; a violation
// of the one-active-ride indexes becomes ConflictError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintActiveRider:
			return &ride.ConflictError{Reason: ride.ReasonRiderBusy}
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintActiveDriver:
			return &ride.ConflictError{Reason: ride.ReasonDriverBusy}
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == codeSerializationFailure,
			pgErr.Code == codeDeadlockDetected,
			pgErr.Code == codeAdminShutdown,
			pgErr.Code == codeTooManyConnections:
			return ride.NewTransportError(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return ride.NewTransportError(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// forRide stamps rideID on a conflict classify produced without one.
func forRide(err error, rideID string) error {
	var conflict *ride.ConflictError
	if errors.As(err, &conflict) && conflict.RideID == "" {
		conflict.RideID = rideID
	}
	return err
}
