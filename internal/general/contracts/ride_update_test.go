package contracts

import (
	"testing"
	"time"

	"hailo/internal/domain/ride"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRideUpdateEnvelope(t *testing.T) {
	driverID := "driver-1"
	update := ride.Update{
		RideID:         "r1",
		Status:         ride.StatusAccepted,
		PreviousStatus: ride.StatusPending,
		DriverID:       &driverID,
		OccurredAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := EncodeRideUpdate(update, "req-7")
	require.NoError(t, err)
	assert.Contains(t, string(body), `"ride_id":"r1"`)
	assert.Contains(t, string(body), `"producer":"ride-service"`)

	msg, err := DecodeRideUpdate(body)
	require.NoError(t, err)
	assert.Equal(t, update, msg.Update)
	assert.Equal(t, "req-7", msg.CorrelationID)
}

func TestDecodeRideUpdateRejectsGarbage(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{"status":"accepted"}`,
		`{"ride_id":"r1","status":"teleported"}`,
	} {
		_, err := DecodeRideUpdate([]byte(body))
		assert.Error(t, err, body)
	}
}
