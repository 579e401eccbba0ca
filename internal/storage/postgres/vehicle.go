package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentacar/internal/domain/vehicle"
)

const (
	getVehicleSQL = `SELECT id, name, is_available, price_per_day FROM vehicles WHERE id = $1`

	upsertVehicleSQL = `INSERT INTO vehicles (name, is_available, price_per_day)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET is_available = EXCLUDED.is_available, price_per_day = EXCLUDED.price_per_day
		RETURNING id`
)

var _ vehicle.Repository = (*VehicleRepository)(nil)

// VehicleRepository implements vehicle.Repository backed by PostgreSQL.
type VehicleRepository struct {
	q querier
}

// NewVehicleRepository returns a VehicleRepository that uses the given pool.
func NewVehicleRepository(pool *pgxpool.Pool) *VehicleRepository {
	return &VehicleRepository{q: pool}
}

// GetByID returns vehicle.ErrNotFound when no vehicle has the given id.
func (r *VehicleRepository) GetByID(ctx context.Context, id int64) (*vehicle.Vehicle, error) {
	rows, err := r.q.Query(ctx, getVehicleSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting vehicle %d: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVehicle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vehicle.ErrNotFound
		}
		return nil, fmt.Errorf("getting vehicle %d: %w", id, err)
	}
	return &v, nil
}

// Upsert inserts v or updates the vehicle with the same name, and sets v.ID.
func (r *VehicleRepository) Upsert(ctx context.Context, v *vehicle.Vehicle) error {
	err := r.q.QueryRow(ctx, upsertVehicleSQL, v.Name, v.IsAvailable, v.PricePerDay).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("upserting vehicle %q: %w", v.Name, err)
	}
	return nil
}

func scanVehicle(row pgx.CollectableRow) (vehicle.Vehicle, error) {
	var v vehicle.Vehicle
	err := row.Scan(&v.ID, &v.Name, &v.IsAvailable, &v.PricePerDay)
	return v, err
}
