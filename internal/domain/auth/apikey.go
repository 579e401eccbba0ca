package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no active API key has the given hash.
var ErrNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity bound to a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  int64
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	// FindByHash returns ErrNotFound for unknown or revoked keys. Any other
	// error is a storage failure.
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
