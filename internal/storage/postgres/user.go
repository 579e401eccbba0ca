package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/rentacar/internal/domain/user"
)

const (
	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	upsertUserSQL = `INSERT INTO users (email, name) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	q querier
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{q: pool}
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.q.QueryRow(ctx, userExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking user %d: %w", id, err)
	}
	return ok, nil
}

// Upsert creates the user identified by email or renames it, returning its id.
func (r *UserRepository) Upsert(ctx context.Context, email, name string) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, upsertUserSQL, email, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upserting user %q: %w", email, err)
	}
	return id, nil
}
