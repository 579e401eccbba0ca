package rental

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/domain/vehicle"
)

// CreateRequest holds the input for booking a vehicle.
type CreateRequest struct {
	VehicleID  int64
	UserID     int64
	StartDate  time.Time
	EndDate    time.Time
	CouponCode string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to reject past start dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine validates, prices and commits rentals. It keeps no state between
// calls; all ordering guarantees come from the Store.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates an Engine that commits through store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CreateRental runs the booking pipeline: validate dates, resolve the
// vehicle, check availability under the vehicle lock, price the rental,
// apply at most one coupon and commit the rental together with its
// redemption. Booking outcomes are returned as the sentinel errors of this
// package; any other error is an infrastructure failure.
func (e *Engine) CreateRental(ctx context.Context, req CreateRequest) (*Rental, error) {
	requested := Interval{Start: req.StartDate, End: req.EndDate}
	if requested.Start.Before(e.now()) || !requested.Valid() {
		return nil, ErrInvalidDateRange
	}

	var created *Rental
	err := e.store.Do(ctx, func(s Session) error {
		v, err := s.Vehicles().GetByID(ctx, req.VehicleID)
		if err != nil {
			if errors.Is(err, vehicle.ErrNotFound) {
				return ErrVehicleNotFound
			}
			return errors.Wrap(err, "get vehicle")
		}

		if err := s.Rentals().LockVehicle(ctx, v.ID); err != nil {
			return errors.Wrap(err, "lock vehicle")
		}
		existing, err := s.Rentals().ListByVehicle(ctx, v.ID, requested.Start)
		if err != nil {
			return errors.Wrap(err, "list vehicle rentals")
		}
		if !Available(v.IsAvailable, existing, requested) {
			return ErrVehicleUnavailable
		}

		total := BasePrice(v.PricePerDay, requested.Days())

		var applied *coupon.Coupon
		if req.CouponCode != "" {
			c, err := s.Coupons().FindByCode(ctx, req.CouponCode)
			if err != nil {
				if errors.Is(err, coupon.ErrNotFound) {
					return ErrInvalidCoupon
				}
				return errors.Wrap(err, "find coupon")
			}
			redeemed, err := s.Coupons().HasUserRedeemed(ctx, c.Code, req.UserID)
			if err != nil {
				return errors.Wrap(err, "check coupon redemption")
			}
			if redeemed {
				return ErrCouponAlreadyRedeemed
			}
			total = coupon.ApplyDiscount(total, c.DiscountPercent)
			applied = c
		}

		r := &Rental{
			VehicleID:  v.ID,
			RentedBy:   req.UserID,
			StartDate:  requested.Start,
			EndDate:    requested.End,
			TotalPrice: total.Round(2),
		}
		if applied != nil {
			r.CouponCode = applied.Code
		}
		if err := s.Rentals().Create(ctx, r); err != nil {
			if IsDomainError(err) {
				return err
			}
			return errors.Wrap(err, "create rental")
		}

		if applied != nil {
			if err := s.Coupons().Redeem(ctx, &coupon.Redemption{
				RentalID: r.ID,
				CouponID: applied.ID,
				UserID:   req.UserID,
			}); err != nil {
				if IsDomainError(err) {
					return err
				}
				return errors.Wrap(err, "redeem coupon")
			}
		}

		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Rental created",
		zap.Int64("rental_id", created.ID),
		zap.Int64("vehicle_id", created.VehicleID),
		zap.Int64("user_id", created.RentedBy),
		zap.Stringer("total", created.TotalPrice),
		zap.String("coupon", created.CouponCode),
	)
	return created, nil
}

// CancelRental deletes a rental owned by userID. A missing rental and one
// owned by somebody else both yield ErrRentalNotFound.
func (e *Engine) CancelRental(ctx context.Context, rentalID, userID int64) error {
	err := e.store.Do(ctx, func(s Session) error {
		return s.Rentals().Delete(ctx, rentalID, userID)
	})
	if err != nil {
		if errors.Is(err, ErrRentalNotFound) {
			return ErrRentalNotFound
		}
		return errors.Wrap(err, "delete rental")
	}

	zctx.From(ctx).Info("Rental cancelled",
		zap.Int64("rental_id", rentalID),
		zap.Int64("user_id", userID),
	)
	return nil
}
