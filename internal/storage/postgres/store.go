package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/domain/rental"
	"github.com/xenking/rentacar/internal/domain/vehicle"
)

var _ rental.Store = (*Store)(nil)

// Store opens one READ COMMITTED transaction per Do call. Booking sessions
// serialize on the vehicle row lock taken by RentalRepository.LockVehicle, and
// the committed-read snapshot lets the overlap query after the lock observe
// rentals inserted by the previous lock holder.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Do runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, including when fn panics.
func (s *Store) Do(ctx context.Context, fn func(rental.Session) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// Rollback uses a fresh context so a cancelled request still releases its locks.
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zctx.From(ctx).Error("Failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(session{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type session struct {
	tx pgx.Tx
}

func (s session) Vehicles() vehicle.Repository { return &VehicleRepository{q: s.tx} }
func (s session) Coupons() coupon.Repository   { return &CouponRepository{q: s.tx} }
func (s session) Rentals() rental.Repository   { return &RentalRepository{q: s.tx} }
