package ride

import "hailo/internal/domain/user"

// ProjectedState is an actor's local view of a ride status.
type ProjectedState string

// Rider states.
const (
	RiderIdle           ProjectedState = "idle"
	RiderSearching      ProjectedState = "searching"
	RiderDriverAssigned ProjectedState = "driverAssigned"
	RiderInProgress     ProjectedState = "inProgress"
	RiderCompleted      ProjectedState = "completed"
)

// Driver states.
const (
	DriverOffline      ProjectedState = "offline"
	DriverOnline       ProjectedState = "online"
	DriverRideAccepted ProjectedState = "rideAccepted"
	DriverInProgress   ProjectedState = "inProgress"
	DriverCompleted    ProjectedState = "completed"
)

// String returns the string representation of the ProjectedState.
func (state ProjectedState) String() string {
	return string(state)
}

// Project maps a record status onto the local state machine of role.
// The zero status projects to the role's resting state.
func Project(role user.Role, status Status) ProjectedState {
	if role.IsDriver() {
		return projectDriver(status)
	}
	return projectRider(status)
}

func projectRider(status Status) ProjectedState {
	switch status {
	case StatusPending:
		return RiderSearching
	case StatusAccepted:
		return RiderDriverAssigned
	case StatusInProgress:
		return RiderInProgress
	case StatusCompleted:
		return RiderCompleted
	default:
		return RiderIdle
	}
}

// a driver only attaches to a record on accept, so pending and cancelled
// both leave the driver browsing the pool
func projectDriver(status Status) ProjectedState {
	switch status {
	case StatusAccepted:
		return DriverRideAccepted
	case StatusInProgress:
		return DriverInProgress
	case StatusCompleted:
		return DriverCompleted
	default:
		return DriverOnline
	}
}
