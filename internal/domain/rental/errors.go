package rental

import "github.com/go-faster/errors"

// Booking outcomes. The message of each error is a reason that can be shown
// to the renter as is.
var (
	ErrInvalidDateRange      = errors.New("the start date must not be in the past and must be earlier than the end date")
	ErrVehicleNotFound       = errors.New("vehicle not found")
	ErrVehicleUnavailable    = errors.New("vehicle is not available for the requested dates")
	ErrInvalidCoupon         = errors.New("invalid coupon code")
	ErrCouponAlreadyRedeemed = errors.New("you have already redeemed this coupon")
	ErrRentalNotFound        = errors.New("rental not found")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidDateRange, "InvalidDateRange"},
	{ErrVehicleNotFound, "VehicleNotFound"},
	{ErrVehicleUnavailable, "VehicleUnavailable"},
	{ErrInvalidCoupon, "InvalidCoupon"},
	{ErrCouponAlreadyRedeemed, "CouponAlreadyRedeemed"},
	{ErrRentalNotFound, "RentalNotFound"},
}

// KindOf returns the outcome name of a booking error, or an empty string
// when err is an infrastructure failure.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// IsDomainError reports whether err is one of the booking outcomes above.
func IsDomainError(err error) bool {
	return KindOf(err) != ""
}
