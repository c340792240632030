package postgres

import (
	"context"
	"errors"
	"testing"

	"hailo/internal/domain/ride"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transport bool
		conflict  bool
	}{
		{"connection exception", &pgconn.PgError{Code: "08006"}, true, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true, false},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, false},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, false},
		{"active rider index", &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveRider}, false, true},
		{"active driver index", &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveDriver}, false, true},
		{"other unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "ride_requests_pkey"}, false, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false, false},
		{"deadline", context.DeadlineExceeded, true, false},
		{"plain", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.transport, ride.IsTransport(got))
			assert.Equal(t, tt.conflict, ride.IsConflict(got))
		})
	}

	assert.NoError(t, classify("op", nil))
}

func TestClassifiedConflictCarriesRideID(t *testing.T) {
	busy := &pgconn.PgError{Code: "23505", ConstraintName: constraintActiveDriver}

	err := forRide(classify("conditional status update", busy), "ride-1")
	var conflict *ride.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ride-1", conflict.RideID)
	assert.Equal(t, ride.ReasonDriverBusy, conflict.Reason)
	assert.False(t, ride.IsRideTaken(err))
	assert.Equal(t, "ride ride-1 conflict: driver already has an active ride", err.Error())

	// an id already set is kept
	err = forRide(&ride.ConflictError{RideID: "ride-2"}, "ride-1")
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ride-2", conflict.RideID)

	assert.NoError(t, forRide(nil, "ride-1"))
	plain := errors.New("boom")
	assert.Same(t, plain, forRide(plain, "ride-1"))
}

func TestMigrationsAreOrdered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_ride_requests.sql", "0002_ride_events.sql"}, names)
}

func TestLimitOrAll(t *testing.T) {
	assert.Nil(t, limitOrAll(0))
	assert.Nil(t, limitOrAll(-1))
	require.NotNil(t, limitOrAll(5))
	assert.Equal(t, 5, *limitOrAll(5))
}
