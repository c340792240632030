package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

var ErrSessionClosed = errors.New("session closed")

// Config tunes the polling fallback of a session.
type Config struct {
	PollInterval    time.Duration
	StalenessWindow time.Duration // zero disables staleness reporting
}

// Deps are the collaborators shared by every session of a process.
type Deps struct {
	Service  ports.RideService
	Notifier ports.Notifier
	Logger   *logger.Logger
	Config   Config
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ActorID         string              `json:"actor_id"`
	Role            user.Role           `json:"role"`
	State           ride.ProjectedState `json:"state"`
	RideID          string              `json:"ride_id,omitempty"`
	Status          ride.Status         `json:"status,omitempty"`
	LastObservation *time.Time          `json:"last_observation_at,omitempty"`
	Stale           bool                `json:"stale"`
}

// session is the role-independent half of an actor session: one attached ride at a time,
// fed by a push feed and a poll feed into the reconciler.
type session struct {
	actorID      string
	role         user.Role
	service      ports.RideService
	notifier     ports.Notifier
	log          *logger.Logger
	cfg          Config
	reconciler   *Reconciler
	onTransition TransitionFunc
	onTerminal   func(ctx context.Context, t Transition)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    ride.ProjectedState
	current  *attachment
	lastSeen time.Time
	closed   bool
}

func newSession(actorID string, role user.Role, deps Deps, initial ride.ProjectedState, onTransition TransitionFunc) *session {
	if deps.Config.PollInterval <= 0 {
		deps.Config.PollInterval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(logger.WithActorID(context.Background(), actorID))
	s := &session{
		actorID:      actorID,
		role:         role,
		service:      deps.Service,
		notifier:     deps.Notifier,
		log:          deps.Logger,
		cfg:          deps.Config,
		onTransition: onTransition,
		ctx:          ctx,
		cancel:       cancel,
		state:        initial,
	}
	s.reconciler = NewReconciler(actorID, role, deps.Logger, s.handleTransition)
	return s
}

// attachment owns the feeds of one ride and the loop merging them.
type attachment struct {
	rideID string
	push   Feed
	poll   Feed
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (a *attachment) run(observe func(Observation)) {
	defer close(a.done)

	var push <-chan Observation
	if a.push != nil {
		push = a.push.Observations()
	}
	poll := a.poll.Observations()

	for {
		select {
		case <-a.stop:
			return
		case obs, ok := <-push:
			if !ok {
				push = nil
				continue
			}
			observe(obs)
		case obs, ok := <-poll:
			if !ok {
				poll = nil
				continue
			}
			observe(obs)
		}
	}
}

// release closes both feeds. It does not wait for the loop, so it is safe to call from it.
func (a *attachment) release() {
	a.once.Do(func() {
		close(a.stop)
		if a.push != nil {
			_ = a.push.Close()
		}
		_ = a.poll.Close()
	})
}

// attach subscribes to record, starts polling it and applies the record itself as the
// first observation. The subscription is opened before the record is applied so no
// update between the read and the subscribe is lost for good.
func (s *session) attach(record *ride.Record) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	same := s.current != nil && s.current.rideID == record.ID
	s.mu.Unlock()

	if same {
		s.observe(ObserveRecord(record, ChannelFetch))
		return nil
	}
	s.detach()

	ctx := logger.WithRideID(s.ctx, record.ID)
	s.reconciler.Attach(record.ID, "")

	a := &attachment{
		rideID: record.ID,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	push, err := NewPushFeed(ctx, s.notifier, record.ID)
	if err != nil {
		// polling alone still converges
		s.log.Error(ctx, "subscription_failed", "Push subscription failed, polling only", err, nil)
	} else {
		a.push = push
	}

	rideID := record.ID
	a.poll = NewPollFeed(ctx, s.cfg.PollInterval, func(ctx context.Context) (*ride.Record, error) {
		return s.service.Get(ctx, rideID)
	}, s.log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.reconciler.Detach(rideID)
		a.release()
		return ErrSessionClosed
	}
	s.current = a
	s.lastSeen = time.Now()
	s.mu.Unlock()

	go a.run(s.observe)

	s.log.Info(ctx, "ride_attached", "Session attached to ride", map[string]any{
		"status":        record.Status,
		"push":          a.push != nil,
		"poll_interval": s.cfg.PollInterval.String(),
	})

	s.observe(ObserveRecord(record, ChannelFetch))
	return nil
}

// detach releases the current ride and waits for its loop to exit. After detach returns
// no observation for that ride reaches the reconciler.
func (s *session) detach() {
	s.mu.Lock()
	a := s.current
	s.current = nil
	s.mu.Unlock()

	if a == nil {
		return
	}
	s.reconciler.Detach(a.rideID)
	a.release()
	<-a.done

	s.log.Info(logger.WithRideID(s.ctx, a.rideID), "ride_detached", "Session released ride", nil)
}

func (s *session) observe(obs Observation) {
	s.mu.Lock()
	if s.current != nil && s.current.rideID == obs.RideID {
		s.lastSeen = time.Now()
	}
	s.mu.Unlock()

	// stale observations are expected and already logged
	_ = s.reconciler.Apply(logger.WithRideID(s.ctx, obs.RideID), obs)
}

func (s *session) handleTransition(t Transition) {
	s.mu.Lock()
	s.state = t.State
	var released *attachment
	if t.To.Terminal() && s.current != nil && s.current.rideID == t.RideID {
		released = s.current
		s.current = nil
	}
	s.mu.Unlock()

	if released != nil {
		s.reconciler.Detach(t.RideID)
		released.release()
		s.log.Info(logger.WithRideID(s.ctx, t.RideID), "ride_detached", "Ride reached a terminal status", map[string]any{"status": t.To})
		if s.onTerminal != nil {
			s.onTerminal(s.ctx, t)
		}
	}

	// a ride first seen already cancelled is released without a visible change
	if s.onTransition != nil && t.ProjectionChanged() {
		s.onTransition(t)
	}
}

func (s *session) attachedRide() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return s.current.rideID, true
}

// mutateAttached runs op on the attached ride and feeds its result back as an observation.
// A conflict triggers a refresh so the projection catches up with whoever won.
func (s *session) mutateAttached(ctx context.Context, op func(ctx context.Context, rideID string) (*ride.Record, error)) (*ride.Record, error) {
	rideID, ok := s.attachedRide()
	if !ok {
		return nil, ride.NewValidationError("ride_id", "no active ride")
	}

	record, err := op(ctx, rideID)
	if err != nil {
		if ride.IsConflict(err) {
			_, _ = s.refresh(ctx)
		}
		return nil, err
	}
	s.observe(ObserveRecord(record, ChannelFetch))
	return record, nil
}

// resume re-attaches to the actor's in-flight ride, if any.
func (s *session) resume(ctx context.Context) (*ride.Record, error) {
	record, err := s.service.FindActiveFor(ctx, s.actorID, s.role)
	if err != nil || record == nil {
		return nil, err
	}
	if err := s.attach(record); err != nil {
		return nil, err
	}
	return record, nil
}

// refresh re-reads the attached ride. It is the manual poll offered when the session is stale.
func (s *session) refresh(ctx context.Context) (*ride.Record, error) {
	rideID, ok := s.attachedRide()
	if !ok {
		return nil, nil
	}
	record, err := s.service.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.observe(ObserveRecord(record, ChannelFetch))
	return record, nil
}

func (s *session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{ActorID: s.actorID, Role: s.role, State: s.state}
	if s.current == nil {
		return snap
	}

	snap.RideID = s.current.rideID
	snap.Status, _ = s.reconciler.Status(s.current.rideID)
	lastSeen := s.lastSeen
	snap.LastObservation = &lastSeen
	snap.Stale = s.cfg.StalenessWindow > 0 && time.Since(lastSeen) > s.cfg.StalenessWindow
	return snap
}

func (s *session) setState(state ride.ProjectedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *session) currentState() ride.ProjectedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// close detaches and cancels every background goroutine of the session. Idempotent.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.detach()
	s.cancel()
}
