package lifecycle

import (
	"context"
	"sync"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/logger"
)

// Transition is emitted once per accepted forward move that changes the projection or ends the ride.
type Transition struct {
	ActorID  string
	Role     user.Role
	RideID   string
	From     ride.Status
	To       ride.Status
	Previous ride.ProjectedState
	State    ride.ProjectedState
	Channel  Channel
	At       time.Time
}

// ProjectionChanged reports whether the move changed what the actor sees.
func (t Transition) ProjectionChanged() bool {
	return t.Previous != t.State
}

// TransitionFunc receives accepted transitions in the order they were applied.
// It must not call Apply on the reconciler that invoked it.
type TransitionFunc func(Transition)

// Reconciler keeps the last applied status per attached ride and turns observations
// into transitions. Observations that do not move strictly forward are discarded.
type Reconciler struct {
	actorID      string
	role         user.Role
	log          *logger.Logger
	onTransition TransitionFunc

	mu    sync.Mutex
	rides map[string]ride.Status

	// held across the callback so transitions reach onTransition in apply order
	emitMu sync.Mutex
}

// NewReconciler creates a reconciler for one actor.
func NewReconciler(actorID string, role user.Role, log *logger.Logger, onTransition TransitionFunc) *Reconciler {
	return &Reconciler{
		actorID:      actorID,
		role:         role,
		log:          log,
		onTransition: onTransition,
		rides:        make(map[string]ride.Status),
	}
}

// Attach starts tracking rideID from baseline. The zero baseline accepts any first status.
// Attaching an already tracked ride keeps the further of the two statuses.
func (r *Reconciler) Attach(rideID string, baseline ride.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.rides[rideID]; ok && !current.Reaches(baseline) {
		return
	}
	r.rides[rideID] = baseline
}

// Detach stops tracking rideID. Later observations for it are stale.
func (r *Reconciler) Detach(rideID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rides, rideID)
}

// Status returns the last applied status of rideID.
func (r *Reconciler) Status(rideID string) (ride.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.rides[rideID]
	return status, ok
}

// Apply feeds one observation. It returns ErrStaleObservation when the ride is not attached
// or the observed status is not strictly ahead of the last applied one. The transition
// callback runs when the projected state changes or the ride reaches a terminal status.
func (r *Reconciler) Apply(ctx context.Context, obs Observation) error {
	r.mu.Lock()
	current, ok := r.rides[obs.RideID]
	if !ok || !current.Reaches(obs.Status) {
		r.mu.Unlock()
		r.log.Debug(ctx, "observation_discarded", "Stale or duplicate observation", map[string]any{
			"ride_id":  obs.RideID,
			"observed": obs.Status,
			"current":  current,
			"attached": ok,
			"channel":  obs.Channel,
		})
		return ride.ErrStaleObservation
	}
	r.rides[obs.RideID] = obs.Status

	transition := Transition{
		ActorID:  r.actorID,
		Role:     r.role,
		RideID:   obs.RideID,
		From:     current,
		To:       obs.Status,
		Previous: ride.Project(r.role, current),
		State:    ride.Project(r.role, obs.Status),
		Channel:  obs.Channel,
		At:       obs.At,
	}

	r.emitMu.Lock()
	r.mu.Unlock()
	defer r.emitMu.Unlock()

	r.log.Info(ctx, "transition_applied", "Ride status observed", map[string]any{
		"ride_id": obs.RideID,
		"from":    current,
		"to":      obs.Status,
		"state":   transition.State,
		"channel": obs.Channel,
	})

	if r.onTransition != nil && (transition.ProjectionChanged() || transition.To.Terminal()) {
		r.onTransition(transition)
	}
	return nil
}
