package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"hailo/internal/domain/geo"
	"hailo/internal/domain/ride"
	"hailo/internal/domain/user"
	"hailo/internal/ports"

	"github.com/jackc/pgx/v5"
)

const rideColumns = `
	id, rider_id, driver_id, pickup_location, pickup_coordinates,
	destination, destination_coordinates, rider_location, driver_location,
	estimated_price, estimated_time, ride_type, status, created_at, updated_at`

// RideRepo persists ride requests using pgx and plain SQL. Methods must run inside
// UnitOfWork.WithinTx.
type RideRepo struct{}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

// Create inserts a pending ride. The partial unique index on rider_id rejects a second
// active ride for the same rider.
func (repo *RideRepo) Create(ctx context.Context, record *ride.Record) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	pickup, err := json.Marshal(record.PickupCoordinates)
	if err != nil {
		return err
	}
	destination, err := json.Marshal(record.DestinationCoordinates)
	if err != nil {
		return err
	}
	riderLocation, err := json.Marshal(record.RiderLocation)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO ride_requests (
			rider_id, pickup_location, pickup_coordinates, destination,
			destination_coordinates, rider_location, estimated_price,
			estimated_time, ride_type, status
		)
		VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`,
		record.RiderID,
		record.PickupLocation,
		string(pickup),
		record.Destination,
		string(destination),
		string(riderLocation),
		record.EstimatedPrice,
		record.EstimatedTime,
		record.RideType,
		record.Status.String(),
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return classify("insert ride", err)
	}

	return nil
}

// GetByID fetches a ride by id.
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Record, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	record, err := scanRecord(tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM ride_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ride.ErrRideNotFound
	}
	if err != nil {
		return nil, classify("get ride", err)
	}
	return record, nil
}

// CompareAndSetStatus is a single conditional UPDATE: the row moves only when its status is
// still one of change.From. driver_id is written once; later writes keep the stored value.
func (repo *RideRepo) CompareAndSetStatus(ctx context.Context, change ports.StatusChange) (*ride.Record, bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, false, err
	}

	from := make([]string, 0, len(change.From))
	for _, status := range change.From {
		from = append(from, status.String())
	}

	var driverLocation *string
	if change.DriverLocation != nil {
		b, err := json.Marshal(change.DriverLocation)
		if err != nil {
			return nil, false, err
		}
		s := string(b)
		driverLocation = &s
	}

	record, err := scanRecord(tx.QueryRow(ctx, `
		UPDATE ride_requests
		SET status          = $3,
		    driver_id       = COALESCE(driver_id, $4),
		    driver_location = CASE WHEN driver_id IS NULL AND $5::jsonb IS NOT NULL
		                           THEN $5::jsonb ELSE driver_location END,
		    updated_at      = now()
		WHERE id = $1
		  AND status = ANY($2)
		RETURNING `+rideColumns,
		change.RideID,
		from,
		change.To.String(),
		change.DriverID,
		driverLocation,
	))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, forRide(classify("conditional status update", err), change.RideID)
	}

	// precondition failed or the row does not exist
	current, err := repo.GetByID(ctx, change.RideID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// FindActive fetches the newest active ride of the actor, or nil when there is none.
func (repo *RideRepo) FindActive(ctx context.Context, actorID string, role user.Role) (*ride.Record, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + rideColumns + ` FROM ride_requests
		WHERE rider_id = $1 AND status IN ('pending', 'accepted', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1`
	if role.IsDriver() {
		query = `SELECT ` + rideColumns + ` FROM ride_requests
			WHERE driver_id = $1 AND status IN ('accepted', 'in_progress')
			ORDER BY created_at DESC
			LIMIT 1`
	}

	record, err := scanRecord(tx.QueryRow(ctx, query, actorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find active ride", err)
	}
	return record, nil
}

// ListPending returns pending rides, newest first.
func (repo *RideRepo) ListPending(ctx context.Context, limit int) ([]*ride.Record, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT `+rideColumns+` FROM ride_requests
		WHERE status = 'pending'
		ORDER BY created_at DESC
		LIMIT $1`, limitOrAll(limit))
	if err != nil {
		return nil, classify("list pending rides", err)
	}
	return collectRecords(rows)
}

// ListHistory returns the actor's rides in any status, newest first.
func (repo *RideRepo) ListHistory(ctx context.Context, actorID string, role user.Role, limit int) ([]*ride.Record, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	column := "rider_id"
	if role.IsDriver() {
		column = "driver_id"
	}

	rows, err := tx.Query(ctx, `SELECT `+rideColumns+` FROM ride_requests
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2`, actorID, limitOrAll(limit))
	if err != nil {
		return nil, classify("list ride history", err)
	}
	return collectRecords(rows)
}

// ----- internal helpers -----

// limitOrAll turns a non-positive limit into a NULL LIMIT, which Postgres reads as no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func collectRecords(rows pgx.Rows) ([]*ride.Record, error) {
	defer rows.Close()

	var out []*ride.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("rows", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*ride.Record, error) {
	var (
		out                                         ride.Record
		status                                      string
		pickup, destination, riderLoc, driverLocRaw []byte
	)

	err := row.Scan(
		&out.ID, &out.RiderID, &out.DriverID, &out.PickupLocation, &pickup,
		&out.Destination, &destination, &riderLoc, &driverLocRaw,
		&out.EstimatedPrice, &out.EstimatedTime, &out.RideType, &status, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	out.Status = ride.Status(status)
	if err := decodePoint(pickup, &out.PickupCoordinates); err != nil {
		return nil, err
	}
	if err := decodePoint(destination, &out.DestinationCoordinates); err != nil {
		return nil, err
	}
	if err := decodePoint(riderLoc, &out.RiderLocation); err != nil {
		return nil, err
	}
	if len(driverLocRaw) > 0 {
		var loc geo.Point
		if err := decodePoint(driverLocRaw, &loc); err != nil {
			return nil, err
		}
		out.DriverLocation = &loc
	}

	return &out, nil
}

func decodePoint(raw []byte, dst *geo.Point) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode coordinates: %w", err)
	}
	return nil
}
