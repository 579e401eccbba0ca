package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentacar/internal/domain/rental"
	"github.com/xenking/rentacar/internal/domain/vehicle"
)

const (
	lockVehicleSQL = `SELECT id FROM vehicles WHERE id = $1 FOR UPDATE`

	listVehicleRentalsSQL = `SELECT id, vehicle_id, rented_by, start_date, end_date, total_price,
		COALESCE(coupon_code, ''), created_at
		FROM rentals
		WHERE vehicle_id = $1 AND end_date > $2
		ORDER BY start_date`

	createRentalSQL = `INSERT INTO rentals (vehicle_id, rented_by, start_date, end_date, total_price, coupon_code)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING id, created_at`

	deleteRentalSQL = `DELETE FROM rentals WHERE id = $1 AND rented_by = $2`
)

var _ rental.Repository = (*RentalRepository)(nil)

// RentalRepository implements rental.Repository backed by PostgreSQL.
type RentalRepository struct {
	q querier
}

// NewRentalRepository returns a RentalRepository that uses the given pool.
// Outside a Store session LockVehicle holds the lock only for its own statement.
func NewRentalRepository(pool *pgxpool.Pool) *RentalRepository {
	return &RentalRepository{q: pool}
}

// LockVehicle takes a row lock on the vehicle until the transaction ends.
func (r *RentalRepository) LockVehicle(ctx context.Context, vehicleID int64) error {
	var id int64
	if err := r.q.QueryRow(ctx, lockVehicleSQL, vehicleID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return vehicle.ErrNotFound
		}
		return fmt.Errorf("locking vehicle %d: %w", vehicleID, err)
	}
	return nil
}

// ListByVehicle returns the rentals of a vehicle that end after endAfter,
// ordered by start date.
func (r *RentalRepository) ListByVehicle(ctx context.Context, vehicleID int64, endAfter time.Time) ([]rental.Rental, error) {
	rows, err := r.q.Query(ctx, listVehicleRentalsSQL, vehicleID, endAfter)
	if err != nil {
		return nil, fmt.Errorf("listing rentals of vehicle %d: %w", vehicleID, err)
	}

	out, err := pgx.CollectRows(rows, scanRental)
	if err != nil {
		return nil, fmt.Errorf("listing rentals of vehicle %d: %w", vehicleID, err)
	}
	return out, nil
}

// Create inserts the rental. The rentals_no_overlap exclusion constraint
// surfaces as rental.ErrVehicleUnavailable.
func (r *RentalRepository) Create(ctx context.Context, rent *rental.Rental) error {
	err := r.q.QueryRow(ctx, createRentalSQL,
		rent.VehicleID, rent.RentedBy, rent.StartDate, rent.EndDate, rent.TotalPrice, rent.CouponCode,
	).Scan(&rent.ID, &rent.CreatedAt)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("creating rental for vehicle %d: %w", rent.VehicleID, err)
	}
	return nil
}

// Delete removes the rental if userID owns it. Its coupon redemption is
// removed by the ON DELETE CASCADE foreign key.
func (r *RentalRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.q.Exec(ctx, deleteRentalSQL, id, userID)
	if err != nil {
		return fmt.Errorf("deleting rental %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return rental.ErrRentalNotFound
	}
	return nil
}

func scanRental(row pgx.CollectableRow) (rental.Rental, error) {
	var r rental.Rental
	err := row.Scan(&r.ID, &r.VehicleID, &r.RentedBy, &r.StartDate, &r.EndDate, &r.TotalPrice, &r.CouponCode, &r.CreatedAt)
	return r, err
}
