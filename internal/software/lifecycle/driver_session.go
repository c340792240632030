package lifecycle

import (
	"context"
	"sync"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// PoolFunc receives the pending rides a driver can accept, newest first.
type PoolFunc func(rides []*ride.Record)

// DriverSession browses the pending pool while online and follows the accepted ride.
type DriverSession struct {
	*session
	onPool PoolFunc

	poolMu   sync.Mutex
	pool     *poolWatch
	declined map[string]struct{}
}

// NewDriverSession creates an offline driver session. Callbacks may be nil.
func NewDriverSession(driverID string, deps Deps, onTransition TransitionFunc, onPool PoolFunc) *DriverSession {
	s := &DriverSession{
		session:  newSession(driverID, user.RoleDriver, deps, ride.DriverOffline, onTransition),
		onPool:   onPool,
		declined: make(map[string]struct{}),
	}
	s.onTerminal = s.afterTerminal
	return s
}

// GoOnline starts browsing the pending pool, or resumes an in-flight ride.
func (s *DriverSession) GoOnline(ctx context.Context) error {
	if s.currentState() == ride.DriverOffline {
		s.setState(ride.DriverOnline)
	}

	record, err := s.resume(ctx)
	if err != nil {
		return err
	}
	if record != nil {
		return nil
	}
	if s.currentState() == ride.DriverOnline {
		return s.startPool(ctx)
	}
	return nil
}

// GoOffline stops browsing. A driver with an active ride cannot go offline.
func (s *DriverSession) GoOffline(ctx context.Context) error {
	if _, ok := s.attachedRide(); ok {
		return ride.NewValidationError("status", "cannot go offline with an active ride")
	}
	s.stopPool()
	s.setState(ride.DriverOffline)
	s.log.Info(s.ctx, "driver_offline", "Driver went offline", nil)
	return nil
}

// Accept takes a pending ride. A ConflictError means another driver was first.
func (s *DriverSession) Accept(ctx context.Context, rideID string, location *geo.Point) (*ride.Record, error) {
	switch s.currentState() {
	case ride.DriverOnline, ride.DriverCompleted:
	default:
		return nil, ride.NewValidationError("status", "driver must be online without an active ride")
	}
	if _, ok := s.attachedRide(); ok {
		return nil, ride.NewValidationError("status", "driver already has an active ride")
	}

	record, err := s.service.Accept(ctx, ports.AcceptRideInput{
		RideID:         rideID,
		DriverID:       s.actorID,
		DriverLocation: location,
	})
	if err != nil {
		if ride.IsConflict(err) {
			_ = s.RefreshPool(ctx)
		}
		return nil, err
	}

	s.stopPool()
	if err := s.attach(record); err != nil {
		return nil, err
	}
	return record, nil
}

// ConfirmPickup moves the attached ride to in_progress.
func (s *DriverSession) ConfirmPickup(ctx context.Context) (*ride.Record, error) {
	return s.mutateAttached(ctx, s.service.ConfirmPickup)
}

// Complete finishes the attached ride.
func (s *DriverSession) Complete(ctx context.Context) (*ride.Record, error) {
	return s.mutateAttached(ctx, s.service.CompleteRide)
}

// Decline hides a pending ride from this driver's pool view. Nothing is written.
func (s *DriverSession) Decline(ctx context.Context, rideID string) error {
	s.poolMu.Lock()
	s.declined[rideID] = struct{}{}
	s.poolMu.Unlock()

	s.log.Debug(logger.WithRideID(s.ctx, rideID), "ride_declined", "Driver declined ride", nil)
	return s.RefreshPool(ctx)
}

// Dismiss leaves the completed state and goes back to browsing.
func (s *DriverSession) Dismiss(ctx context.Context) error {
	if s.currentState() != ride.DriverCompleted {
		return nil
	}
	s.setState(ride.DriverOnline)
	return s.startPool(ctx)
}

// Resume re-attaches to the driver's in-flight ride after a reconnect.
func (s *DriverSession) Resume(ctx context.Context) (*ride.Record, error) {
	record, err := s.resume(ctx)
	if err != nil || record == nil {
		return record, err
	}
	s.stopPool()
	return record, nil
}

// Refresh re-reads the attached ride, or the pool when browsing.
func (s *DriverSession) Refresh(ctx context.Context) (*ride.Record, error) {
	if _, ok := s.attachedRide(); ok {
		return s.refresh(ctx)
	}
	if s.currentState() == ride.DriverOnline {
		return nil, s.RefreshPool(ctx)
	}
	return nil, nil
}

// PendingRides lists the pool as this driver sees it.
func (s *DriverSession) PendingRides(ctx context.Context) ([]*ride.Record, error) {
	rides, err := s.service.ListPending(ctx, 0)
	if err != nil {
		return nil, err
	}

	s.poolMu.Lock()
	defer s.poolMu.Unlock()

	visible := rides[:0]
	for _, record := range rides {
		if _, hidden := s.declined[record.ID]; !hidden {
			visible = append(visible, record)
		}
	}
	return visible, nil
}

// RefreshPool reads the pool and hands it to the pool callback.
func (s *DriverSession) RefreshPool(ctx context.Context) error {
	rides, err := s.PendingRides(ctx)
	if err != nil {
		return err
	}
	if s.onPool != nil {
		s.onPool(rides)
	}
	return nil
}

func (s *DriverSession) Snapshot() Snapshot {
	return s.snapshot()
}

// Close releases the ride, the pool watch and every goroutine of the session.
func (s *DriverSession) Close() {
	s.close()
	s.stopPool()
}

// a cancelled ride sends the driver straight back to the pool; a completed one waits
// for Dismiss
func (s *DriverSession) afterTerminal(ctx context.Context, t Transition) {
	if t.To == ride.StatusCancelled && t.State == ride.DriverOnline {
		if err := s.startPool(ctx); err != nil {
			s.log.Error(ctx, "pool_watch_failed", "Failed to resume pool browsing", err, nil)
		}
	}
}

// poolWatch refreshes the pool on every pool notification and every poll tick.
type poolWatch struct {
	sub       ports.Subscription
	scheduler *Scheduler
	stop      chan struct{}
	done      chan struct{}
}

func (s *DriverSession) startPool(ctx context.Context) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	s.poolMu.Lock()
	running := s.pool != nil
	s.poolMu.Unlock()
	if running {
		return nil
	}

	w := &poolWatch{stop: make(chan struct{}), done: make(chan struct{})}
	sub, err := s.notifier.Subscribe(s.ctx, ride.TopicPendingPool)
	if err != nil {
		s.log.Error(s.ctx, "subscription_failed", "Pool subscription failed, polling only", err, nil)
	}
	w.sub = sub
	w.scheduler = NewScheduler(s.cfg.PollInterval, func(ctx context.Context) {
		if err := s.RefreshPool(ctx); err != nil && ctx.Err() == nil {
			s.log.Error(ctx, "poll_failed", "Pool polling read failed", err, nil)
		}
	})
	w.scheduler.Start(s.ctx)
	go s.watchPool(w)

	s.poolMu.Lock()
	if s.pool != nil || s.ctx.Err() != nil {
		s.poolMu.Unlock()
		w.shutdown()
		return nil
	}
	s.pool = w
	s.poolMu.Unlock()

	s.log.Info(s.ctx, "pool_watch_started", "Driver browsing pending rides", nil)
	return s.RefreshPool(ctx)
}

func (s *DriverSession) watchPool(w *poolWatch) {
	defer close(w.done)
	if w.sub == nil {
		<-w.stop
		return
	}

	for {
		select {
		case <-w.stop:
			return
		case _, ok := <-w.sub.Updates():
			if !ok {
				<-w.stop
				return
			}
			if err := s.RefreshPool(s.ctx); err != nil && s.ctx.Err() == nil {
				s.log.Error(s.ctx, "pool_refresh_failed", "Pool refresh after notification failed", err, nil)
			}
		}
	}
}

func (s *DriverSession) stopPool() {
	s.poolMu.Lock()
	w := s.pool
	s.pool = nil
	s.poolMu.Unlock()

	if w == nil {
		return
	}
	w.shutdown()
	s.log.Info(s.ctx, "pool_watch_stopped", "Driver stopped browsing pending rides", nil)
}

func (w *poolWatch) shutdown() {
	close(w.stop)
	if w.sub != nil {
		_ = w.sub.Close()
	}
	w.scheduler.Stop()
	<-w.done
}
