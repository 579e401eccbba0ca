package postgres

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/rentacar/internal/domain/rental"
)

func TestConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "overlap exclusion",
			err:  &pgconn.PgError{Code: codeExclusionViolation, ConstraintName: constraintNoOverlap},
			want: rental.ErrVehicleUnavailable,
		},
		{
			name: "wrapped overlap exclusion",
			err:  fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeExclusionViolation, ConstraintName: constraintNoOverlap}),
			want: rental.ErrVehicleUnavailable,
		},
		{
			name: "coupon redemption unique",
			err:  &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintCouponRedemption},
			want: rental.ErrCouponAlreadyRedeemed,
		},
		{
			name: "other unique constraint",
			err:  &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "vehicles_name_key"},
		},
		{
			name: "check constraint",
			err:  &pgconn.PgError{Code: "23514", ConstraintName: "rentals_valid_range"},
		},
		{
			name: "serialization failure",
			err:  &pgconn.PgError{Code: "40001"},
		},
		{
			name: "not a postgres error",
			err:  assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, constraintError(tt.err))
		})
	}
}
