package ride

import (
	"testing"

	"hailo/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("  IN_PROGRESS ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, status)

	_, err = ParseStatus("matched")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCanTransitionTo(t *testing.T) {
	edges := map[Status][]Status{
		StatusPending:    {StatusAccepted, StatusCancelled},
		StatusAccepted:   {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusCompleted},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, allowed := range edges[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestReaches(t *testing.T) {
	assert.True(t, StatusPending.Reaches(StatusCompleted))
	assert.True(t, StatusPending.Reaches(StatusInProgress))
	assert.True(t, StatusAccepted.Reaches(StatusCompleted))
	assert.False(t, StatusInProgress.Reaches(StatusCancelled))
	assert.False(t, StatusCancelled.Reaches(StatusAccepted))
	assert.False(t, StatusCompleted.Reaches(StatusCompleted))
	assert.True(t, Status("").Reaches(StatusAccepted))
	assert.False(t, Status("").Reaches(Status("bogus")))

	for _, status := range allStatuses {
		assert.False(t, status.Reaches(status), "%s reaches itself", status)
		for _, other := range allStatuses {
			if status.Reaches(other) {
				assert.False(t, other.Reaches(status), "cycle between %s and %s", status, other)
			}
		}
	}
}

func TestStatusClassification(t *testing.T) {
	for _, status := range allStatuses {
		assert.NotEqual(t, status.Terminal(), status.Active(), status)
	}
	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusAccepted.Cancellable())
	assert.False(t, StatusInProgress.Cancellable())
}

func TestProject(t *testing.T) {
	tests := []struct {
		role   user.Role
		status Status
		want   ProjectedState
	}{
		{user.RoleRider, "", RiderIdle},
		{user.RoleRider, StatusPending, RiderSearching},
		{user.RoleRider, StatusAccepted, RiderDriverAssigned},
		{user.RoleRider, StatusInProgress, RiderInProgress},
		{user.RoleRider, StatusCompleted, RiderCompleted},
		{user.RoleRider, StatusCancelled, RiderIdle},
		{user.RoleDriver, StatusPending, DriverOnline},
		{user.RoleDriver, StatusAccepted, DriverRideAccepted},
		{user.RoleDriver, StatusInProgress, DriverInProgress},
		{user.RoleDriver, StatusCompleted, DriverCompleted},
		{user.RoleDriver, StatusCancelled, DriverOnline},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Project(tt.role, tt.status), "%s/%s", tt.role, tt.status)
	}
}
