package vehicle

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested vehicle does not exist.
var ErrNotFound = errors.New("vehicle not found")

// Vehicle is a rentable catalog entry. The booking core only reads it.
type Vehicle struct {
	ID          int64
	Name        string
	IsAvailable bool
	PricePerDay decimal.Decimal
}

// Repository resolves vehicles by identifier.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Vehicle, error)
}
