// Package custperm stores per-user custom permissions: the exception list
// the administrative workflow maintains and the decision engine reads.
package custperm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r2suporte/interalpha/internal/authz"
	"github.com/r2suporte/interalpha/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence over
// custom_permissions. One row per (user, resource, action).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCustomPermissions returns all custom entries for userID.
func (r *Repository) GetCustomPermissions(ctx context.Context, userID string) ([]authz.CustomPermission, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, resource, action, effect, own_only, max_value, departments
FROM custom_permissions WHERE user_id = $1 ORDER BY resource, action`, userID)
	if err != nil {
		return nil, fmt.Errorf("custperm: list for %s: %w", userID, err)
	}
	defer rows.Close()

	var perms []authz.CustomPermission
	for rows.Next() {
		var (
			perm        authz.CustomPermission
			effect      string
			ownOnly     bool
			maxValue    *float64
			departments []string
		)
		if err := rows.Scan(&perm.UserID, &perm.Resource, &perm.Action, &effect, &ownOnly, &maxValue, &departments); err != nil {
			return nil, err
		}
		perm.Effect = authz.CustomPermissionEffect(effect)
		if ownOnly || maxValue != nil || len(departments) > 0 {
			perm.Conditions = &authz.Conditions{OwnOnly: ownOnly, MaxValue: maxValue, Departments: departments}
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// Grant inserts a custom entry. Returns shared.ErrDuplicate when the pair
// already exists for the user.
func (r *Repository) Grant(ctx context.Context, perm authz.CustomPermission) error {
	var (
		ownOnly     bool
		maxValue    *float64
		departments []string
	)
	if perm.Conditions != nil {
		ownOnly = perm.Conditions.OwnOnly
		maxValue = perm.Conditions.MaxValue
		departments = perm.Conditions.Departments
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO custom_permissions (user_id, resource, action, effect, own_only, max_value, departments)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		perm.UserID, perm.Resource, perm.Action, string(perm.Effect), ownOnly, maxValue, departments)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("custperm: grant %s on %s:%s: %w", perm.UserID, perm.Action, perm.Resource, err)
	}
	return nil
}

// Revoke removes the entry for the exact pair. Returns shared.ErrNotFound
// when nothing was removed.
func (r *Repository) Revoke(ctx context.Context, userID, resource, action string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM custom_permissions WHERE user_id = $1 AND resource = $2 AND action = $3`,
		userID, resource, action)
	if err != nil {
		return fmt.Errorf("custperm: revoke %s on %s:%s: %w", userID, action, resource, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
