package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/general/logger"
	"hailo/internal/general/memory"
	"hailo/internal/general/notify"
	"hailo/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLinkDown = errors.New("connection reset by peer")

// flakyRepo fails selected calls with a TransportError before or after delegating.
type flakyRepo struct {
	*memory.RideRepo

	failCompare     atomic.Int32 // CAS calls to fail before reaching the store
	failCreateAfter atomic.Int32 // Create calls that commit and then report a transport failure
	compareCalls    atomic.Int32
}

func (repo *flakyRepo) CompareAndSetStatus(ctx context.Context, change ports.StatusChange) (*ride.Record, bool, error) {
	repo.compareCalls.Add(1)
	if repo.failCompare.Add(-1) >= 0 {
		return nil, false, ride.NewTransportError("compare_and_set_status", errLinkDown)
	}
	return repo.RideRepo.CompareAndSetStatus(ctx, change)
}

func (repo *flakyRepo) Create(ctx context.Context, record *ride.Record) error {
	if err := repo.RideRepo.Create(ctx, record); err != nil {
		return err
	}
	if repo.failCreateAfter.Add(-1) >= 0 {
		return ride.NewTransportError("create_ride", errLinkDown)
	}
	return nil
}

type fixture struct {
	svc    ports.RideService
	repo   *flakyRepo
	events *memory.EventRepo
	hub    *notify.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   &flakyRepo{RideRepo: memory.NewRideRepo()},
		events: memory.NewEventRepo(),
		hub:    notify.NewHub(logger.Nop()),
	}
	t.Cleanup(func() { _ = f.hub.Close() })

	f.svc = NewRideService(logger.Nop(), memory.NewUnitOfWork(), f.repo, f.events, f.hub, RetryPolicy{
		Attempts:   3,
		Backoff:    time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
	})
	return f
}

func requestInput(riderID string) ports.CreateRideInput {
	pickup := geo.Point{}
	return ports.CreateRideInput{
		RiderID:     riderID,
		Pickup:      ride.Location{Label: "Home", Coordinates: &pickup},
		Destination: ride.Location{Label: "Library"},
	}
}

func (f *fixture) pending(t *testing.T, riderID string) *ride.Record {
	t.Helper()
	record, err := f.svc.Create(context.Background(), requestInput(riderID))
	require.NoError(t, err)
	return record
}

func receive(t *testing.T, sub ports.Subscription) ride.Update {
	t.Helper()
	select {
	case update := <-sub.Updates():
		return update
	case <-time.After(time.Second):
		t.Fatal("no update received")
		return ride.Update{}
	}
}

func TestCreateStoresPendingRideAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pool, err := f.hub.Subscribe(ctx, ride.TopicPendingPool)
	require.NoError(t, err)
	defer pool.Close()

	record := f.pending(t, "rider-1")
	assert.Equal(t, ride.StatusPending, record.Status)
	assert.Equal(t, 50, record.EstimatedPrice)
	assert.NotEmpty(t, record.ID)

	update := receive(t, pool)
	assert.Equal(t, record.ID, update.RideID)
	assert.Equal(t, ride.StatusPending, update.Status)

	assert.Equal(t, []ride.EventType{ride.EventRideRequested}, f.events.ForRide(record.ID))
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)

	in := requestInput("rider-1")
	in.Destination.Label = "  "
	_, err := f.svc.Create(context.Background(), in)
	assert.True(t, ride.IsValidation(err))

	pending, err := f.svc.ListPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCreateRejectsSecondActiveRide(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "rider-1")

	in := requestInput("rider-1")
	in.Destination.Label = "Airport"
	_, err := f.svc.Create(context.Background(), in)
	assert.True(t, ride.IsConflict(err))
}

func TestCreateRetryAfterCommittedTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failCreateAfter.Store(1)

	record, err := f.svc.Create(context.Background(), requestInput("rider-1"))
	require.NoError(t, err)

	pending, err := f.svc.ListPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, pending[0].ID, record.ID)
}

func TestAcceptRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	record := f.pending(t, "rider-1")

	const drivers = 12
	var (
		wg        sync.WaitGroup
		winners   atomic.Int32
		conflicts atomic.Int32
	)
	for i := range drivers {
		wg.Add(1)
		go func(driverID string) {
			defer wg.Done()
			_, err := f.svc.Accept(context.Background(), ports.AcceptRideInput{RideID: record.ID, DriverID: driverID})
			switch {
			case err == nil:
				winners.Add(1)
			case ride.IsConflict(err):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("driver-%d", i))
	}
	wg.Wait()

	assert.EqualValues(t, 1, winners.Load())
	assert.EqualValues(t, drivers-1, conflicts.Load())
	assert.Equal(t, []ride.EventType{ride.EventRideRequested, ride.EventDriverAccepted}, f.events.ForRide(record.ID))
}

func TestAcceptByAnotherDriverIsTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.pending(t, "rider-1")

	_, err := f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-b"})
	var conflict *ride.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ride already taken", conflict.Reason)
	assert.True(t, ride.IsRideTaken(err))
	assert.Equal(t, ride.StatusAccepted, conflict.Actual)
}

func TestAcceptByBusyDriverIsNotTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.pending(t, "rider-1")
	second := f.pending(t, "rider-2")

	_, err := f.svc.Accept(ctx, ports.AcceptRideInput{RideID: first.ID, DriverID: "driver-a"})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, ports.AcceptRideInput{RideID: second.ID, DriverID: "driver-a"})
	var conflict *ride.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, second.ID, conflict.RideID)
	assert.Equal(t, ride.ReasonDriverBusy, conflict.Reason)
	assert.False(t, ride.IsRideTaken(err))

	stored, err := f.svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPending, stored.Status)
}

func TestAcceptIsIdempotentForSameDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.pending(t, "rider-1")

	first, err := f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	require.NoError(t, err)

	again, err := f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, again.UpdatedAt)
	assert.Equal(t, []ride.EventType{ride.EventRideRequested, ride.EventDriverAccepted}, f.events.ForRide(record.ID))
}

func TestAcceptRetriesTransportFailures(t *testing.T) {
	f := newFixture(t)
	record := f.pending(t, "rider-1")
	f.repo.failCompare.Store(2)

	accepted, err := f.svc.Accept(context.Background(), ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	assert.True(t, accepted.DriverIs("driver-a"))
	assert.EqualValues(t, 3, f.repo.compareCalls.Load())
}

func TestAcceptGivesUpAfterRetryBudget(t *testing.T) {
	f := newFixture(t)
	record := f.pending(t, "rider-1")
	f.repo.failCompare.Store(10)

	_, err := f.svc.Accept(context.Background(), ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	assert.True(t, ride.IsTransport(err))
	assert.ErrorIs(t, err, errLinkDown)
	assert.EqualValues(t, 3, f.repo.compareCalls.Load())

	current, err := f.svc.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusPending, current.Status)
}

func TestFullLifecyclePublishesEveryTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.pending(t, "rider-1")

	sub, err := f.hub.Subscribe(ctx, ride.TopicForRide(record.ID))
	require.NoError(t, err)
	defer sub.Close()

	_, err = f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, receive(t, sub).Status)

	_, err = f.svc.ConfirmPickup(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusInProgress, receive(t, sub).Status)

	done, err := f.svc.CompleteRide(ctx, record.ID)
	require.NoError(t, err)
	update := receive(t, sub)
	assert.Equal(t, ride.StatusCompleted, update.Status)
	assert.Equal(t, ride.StatusInProgress, update.PreviousStatus)
	assert.True(t, done.DriverIs("driver-a"))

	assert.Equal(t, []ride.EventType{
		ride.EventRideRequested,
		ride.EventDriverAccepted,
		ride.EventRideStarted,
		ride.EventRideCompleted,
	}, f.events.ForRide(record.ID))

	active, err := f.svc.FindActiveFor(ctx, "rider-1", user.RoleRider)
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := f.svc.History(ctx, "driver-a", user.RoleDriver, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ride.StatusCompleted, history[0].Status)
}

func TestTransitionsOutOfOrderConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.pending(t, "rider-1")

	_, err := f.svc.ConfirmPickup(ctx, record.ID)
	assert.True(t, ride.IsConflict(err))

	_, err = f.svc.CompleteRide(ctx, record.ID)
	assert.True(t, ride.IsConflict(err))

	_, err = f.svc.Cancel(ctx, record.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	var conflict *ride.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ride.StatusCancelled, conflict.Actual)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.pending(t, "rider-1")

	first, err := f.svc.Cancel(ctx, record.ID)
	require.NoError(t, err)
	second, err := f.svc.Cancel(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, []ride.EventType{ride.EventRideRequested, ride.EventRideCancelled}, f.events.ForRide(record.ID))
}

func TestCancelAfterPickupConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.pending(t, "rider-1")

	_, err := f.svc.Accept(ctx, ports.AcceptRideInput{RideID: record.ID, DriverID: "driver-a"})
	require.NoError(t, err)
	_, err = f.svc.ConfirmPickup(ctx, record.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, record.ID)
	assert.True(t, ride.IsConflict(err))
}

func TestUnknownRide(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Accept(context.Background(), ports.AcceptRideInput{RideID: "missing", DriverID: "driver-a"})
	assert.ErrorIs(t, err, ride.ErrRideNotFound)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ride.ErrRideNotFound)
}

func TestAcceptValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Accept(context.Background(), ports.AcceptRideInput{RideID: "r", DriverID: " "})
	assert.True(t, ride.IsValidation(err))

	_, err = f.svc.Accept(context.Background(), ports.AcceptRideInput{
		RideID:         "r",
		DriverID:       "driver-a",
		DriverLocation: &geo.Point{Latitude: 91},
	})
	assert.True(t, ride.IsValidation(err))
}
