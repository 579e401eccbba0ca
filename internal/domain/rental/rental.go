package rental

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/rentacar/internal/domain/coupon"
	"github.com/xenking/rentacar/internal/domain/vehicle"
)

// Rental is a committed booking of one vehicle by one renter for the
// half-open interval [StartDate, EndDate).
type Rental struct {
	ID         int64
	VehicleID  int64
	RentedBy   int64
	StartDate  time.Time
	EndDate    time.Time
	TotalPrice decimal.Decimal
	CouponCode string
	CreatedAt  time.Time
}

// Interval returns the booked date range.
func (r Rental) Interval() Interval {
	return Interval{Start: r.StartDate, End: r.EndDate}
}

// Repository is the rentals view of a Session.
type Repository interface {
	// LockVehicle blocks concurrent sessions booking the same vehicle until
	// the calling session commits or rolls back.
	LockVehicle(ctx context.Context, vehicleID int64) error
	// ListByVehicle returns rentals of the vehicle that end after the given time.
	ListByVehicle(ctx context.Context, vehicleID int64, endAfter time.Time) ([]Rental, error)
	// Create stores r and fills in its ID and CreatedAt. It returns
	// ErrVehicleUnavailable when the store rejects an overlapping interval.
	Create(ctx context.Context, r *Rental) error
	// Delete removes the rental only if it is owned by userID, otherwise it
	// returns ErrRentalNotFound.
	Delete(ctx context.Context, id, userID int64) error
}

// Session is a unit of work scoped to exactly one request. Every repository
// it hands out reads and writes through the same transaction.
type Session interface {
	Vehicles() vehicle.Repository
	Coupons() coupon.Repository
	Rentals() Repository
}

// Store opens sessions. Do commits when fn returns nil and rolls back on
// every other exit path, panics included.
type Store interface {
	Do(ctx context.Context, fn func(s Session) error) error
}
