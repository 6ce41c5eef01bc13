// Package directory resolves staff identity attributes (role, liveness) for
// the authorization engine.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r2suporte/interalpha/internal/authz"
)

// Repository provides PostgreSQL backed lookups over the users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRole returns the role of the given user.
func (r *Repository) GetRole(ctx context.Context, userID string) (authz.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", authz.ErrUserNotFound
		}
		return "", fmt.Errorf("directory: get role for %s: %w", userID, err)
	}
	return authz.Role(role), nil
}

// IsActive reports whether the given user account is active.
func (r *Repository) IsActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, authz.ErrUserNotFound
		}
		return false, fmt.Errorf("directory: liveness for %s: %w", userID, err)
	}
	return active, nil
}
