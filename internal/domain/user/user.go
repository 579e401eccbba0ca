package user

import "context"

// Repository answers whether a renter account exists.
type Repository interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
