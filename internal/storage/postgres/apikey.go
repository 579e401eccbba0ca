package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentacar/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, name, user_id
		FROM api_keys WHERE key_hash = $1 AND active = TRUE`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name, user_id = EXCLUDED.user_id, active = TRUE`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	q querier
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{q: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
// Returns auth.ErrNotFound when no matching key exists.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	err := r.q.QueryRow(ctx, getAPIKeyByHashSQL, hash).Scan(&info.ID, &info.KeyHash, &info.Name, &info.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &info, nil
}

// Upsert stores the key under info.ID, replacing any previous hash.
func (r *APIKeyRepository) Upsert(ctx context.Context, info auth.APIKeyInfo) error {
	if _, err := r.q.Exec(ctx, upsertAPIKeySQL, info.ID, info.KeyHash, info.Name, info.UserID); err != nil {
		return fmt.Errorf("upserting api key %q: %w", info.ID, err)
	}
	return nil
}
