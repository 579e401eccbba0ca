package postgres

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/rentacar/internal/domain/rental"
)

// SQLSTATE codes raised by the schema constraints.
const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// Constraint names from db/migrations.
const (
	constraintNoOverlap        = "rentals_no_overlap"
	constraintCouponRedemption = "coupon_redemptions_coupon_user_key"
)

// constraintError maps violations of the booking constraints onto booking
// outcomes. It returns nil for any other error.
func constraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch {
	case pgErr.Code == codeExclusionViolation && pgErr.ConstraintName == constraintNoOverlap:
		return rental.ErrVehicleUnavailable
	case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintCouponRedemption:
		return rental.ErrCouponAlreadyRedeemed
	default:
		return nil
	}
}
