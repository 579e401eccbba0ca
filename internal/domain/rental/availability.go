package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether Start is strictly before End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether the two ranges share any instant. Ranges that
// only touch at an endpoint do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// Days returns the number of whole days covered by the interval.
func (i Interval) Days() int64 {
	if !i.Valid() {
		return 0
	}
	return int64(i.End.Sub(i.Start) / day)
}

// Available reports whether a vehicle can be booked for requested given its
// static availability flag and the rentals already stored for it.
func Available(vehicleAvailable bool, existing []Rental, requested Interval) bool {
	if !vehicleAvailable {
		return false
	}
	for _, r := range existing {
		if r.Interval().Overlaps(requested) {
			return false
		}
	}
	return true
}

// BasePrice is the undiscounted price of renting at dayRate for days.
func BasePrice(dayRate decimal.Decimal, days int64) decimal.Decimal {
	return dayRate.Mul(decimal.NewFromInt(days))
}
