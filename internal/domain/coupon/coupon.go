package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no active coupon matches a code.
var ErrNotFound = errors.New("coupon not found")

// Coupon is a percentage discount identified by a case-insensitive code.
type Coupon struct {
	ID              int64
	Code            string
	DiscountPercent decimal.Decimal
	Description     string
}

// Redemption records that a user consumed a coupon for one rental.
// A (CouponID, UserID) pair is redeemed at most once.
type Redemption struct {
	ID        int64
	RentalID  int64
	CouponID  int64
	UserID    int64
	CreatedAt time.Time
}

// Repository resolves coupons and tracks their redemptions.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	HasUserRedeemed(ctx context.Context, code string, userID int64) (bool, error)
	// Redeem stores r and fills in its ID and CreatedAt.
	Redeem(ctx context.Context, r *Redemption) error
}
