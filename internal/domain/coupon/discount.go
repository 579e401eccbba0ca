package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidPercent is returned when a catalog coupon's discount is outside
// [0, 100].
var ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")

// ValidPercent reports whether percent is a usable discount.
func ValidPercent(percent decimal.Decimal) bool {
	return !percent.IsNegative() && percent.LessThanOrEqual(hundred)
}

// ApplyDiscount reduces total by percent of itself, once. The catalog only
// holds percentages accepted by ValidPercent, so the result is never
// negative.
func ApplyDiscount(total, percent decimal.Decimal) decimal.Decimal {
	return total.Sub(total.Mul(percent).Div(hundred))
}
