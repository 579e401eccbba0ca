package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentacar/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_percent, description
		FROM coupons WHERE code = UPPER($1) AND active = TRUE`

	hasUserRedeemedSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_redemptions cr
		JOIN coupons c ON c.id = cr.coupon_id
		WHERE c.code = UPPER($1) AND cr.user_id = $2)`

	redeemCouponSQL = `INSERT INTO coupon_redemptions (rental_id, coupon_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_percent, description)
		VALUES (UPPER($1), $2, $3)
		ON CONFLICT (code) DO UPDATE
		SET discount_percent = EXCLUDED.discount_percent, description = EXCLUDED.description, active = TRUE
		RETURNING id, code`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	q querier
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{q: pool}
}

// FindByCode looks up an active coupon by its code. Codes are stored
// upper-cased, so the parameter is upper-cased by the query.
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.q.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// HasUserRedeemed reports whether userID already holds a redemption of code.
func (r *CouponRepository) HasUserRedeemed(ctx context.Context, code string, userID int64) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, hasUserRedeemedSQL, code, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking redemption of %q by user %d: %w", code, userID, err)
	}
	return ok, nil
}

// Redeem records the redemption. A second redemption of the same coupon by
// the same user fails with rental.ErrCouponAlreadyRedeemed.
func (r *CouponRepository) Redeem(ctx context.Context, red *coupon.Redemption) error {
	err := r.q.QueryRow(ctx, redeemCouponSQL, red.RentalID, red.CouponID, red.UserID).
		Scan(&red.ID, &red.CreatedAt)
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("redeeming coupon %d for rental %d: %w", red.CouponID, red.RentalID, err)
	}
	return nil
}

// Upsert inserts c or refreshes the coupon with the same code, and sets
// c.ID and the stored upper-case c.Code.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	if !coupon.ValidPercent(c.DiscountPercent) {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, coupon.ErrInvalidPercent)
	}
	err := r.q.QueryRow(ctx, upsertCouponSQL, c.Code, c.DiscountPercent, c.Description).Scan(&c.ID, &c.Code)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercent, &c.Description)
	return c, err
}
