package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/ports"

	"github.com/google/uuid"
)

type entry struct {
	seq    uint64
	record *ride.Record
}

// RideRepo keeps ride records in process memory. All methods are safe for concurrent use and
// CompareAndSetStatus is atomic, so it honors the same conditional-write contract as the
// Postgres repository.
type RideRepo struct {
	mu      sync.Mutex
	seq     uint64
	records map[string]*entry
	now     func() time.Time
}

// NewRideRepo constructs an empty in-memory repository.
func NewRideRepo() *RideRepo {
	return &RideRepo{
		records: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var _ ports.RideRepository = (*RideRepo)(nil)

// Create stores record and fills in its id and timestamps.
func (repo *RideRepo) Create(ctx context.Context, record *ride.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	if active := repo.newestLocked(func(r *ride.Record) bool {
		return r.RiderID == record.RiderID && r.Status.Active()
	}); active != nil {
		return &ride.ConflictError{
			RideID: active.ID,
			Actual: active.Status,
			Reason: "rider already has an active ride",
		}
	}

	now := repo.now()
	record.ID = uuid.NewString()
	record.CreatedAt = now
	record.UpdatedAt = now

	repo.seq++
	repo.records[record.ID] = &entry{seq: repo.seq, record: record.Clone()}
	return nil
}

// GetByID returns a copy of the stored record.
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, ok := repo.records[id]
	if !ok {
		return nil, ride.ErrRideNotFound
	}
	return e.record.Clone(), nil
}

// CompareAndSetStatus applies change under the repository lock.
func (repo *RideRepo) CompareAndSetStatus(ctx context.Context, change ports.StatusChange) (*ride.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, ok := repo.records[change.RideID]
	if !ok {
		return nil, false, ride.ErrRideNotFound
	}
	current := e.record
	if !slices.Contains(change.From, current.Status) {
		return current.Clone(), false, nil
	}

	if change.DriverID != nil && current.DriverID == nil {
		driverID := *change.DriverID
		if busy := repo.newestLocked(func(r *ride.Record) bool {
			return r.ID != current.ID && r.DriverIs(driverID) && r.Status.Active()
		}); busy != nil {
			return nil, false, &ride.ConflictError{
				RideID: current.ID,
				Actual: current.Status,
				Reason: ride.ReasonDriverBusy,
			}
		}
		current.DriverID = &driverID
		if change.DriverLocation != nil {
			loc := *change.DriverLocation
			current.DriverLocation = &loc
		}
	}

	current.Status = change.To
	current.UpdatedAt = repo.now()
	return current.Clone(), true, nil
}

// FindActive returns the actor's newest active ride or nil.
func (repo *RideRepo) FindActive(ctx context.Context, actorID string, role user.Role) (*ride.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	found := repo.newestLocked(func(r *ride.Record) bool {
		return matchesActor(r, actorID, role) && r.Status.Active()
	})
	return found.Clone(), nil
}

// ListPending returns pending records, newest first. A non-positive limit means no limit.
func (repo *RideRepo) ListPending(ctx context.Context, limit int) ([]*ride.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	return repo.listLocked(func(r *ride.Record) bool { return r.Status == ride.StatusPending }, limit), nil
}

// ListHistory returns the actor's records in any status, newest first.
func (repo *RideRepo) ListHistory(ctx context.Context, actorID string, role user.Role, limit int) ([]*ride.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	return repo.listLocked(func(r *ride.Record) bool { return matchesActor(r, actorID, role) }, limit), nil
}

func matchesActor(record *ride.Record, actorID string, role user.Role) bool {
	if role.IsDriver() {
		return record.DriverIs(actorID)
	}
	return record.RiderID == actorID
}

func (repo *RideRepo) listLocked(match func(*ride.Record) bool, limit int) []*ride.Record {
	entries := make([]*entry, 0)
	for _, e := range repo.records {
		if match(e.record) {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		// newest first
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]*ride.Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.record.Clone())
	}
	return out
}

func (repo *RideRepo) newestLocked(match func(*ride.Record) bool) *ride.Record {
	var best *entry
	for _, e := range repo.records {
		if match(e.record) && (best == nil || e.seq > best.seq) {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.record
}
