// Package audit persists and queries authorization decision records. The
// decision engine only produces entries; delivery and retention live here.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/r2suporte/interalpha/internal/authz"
)

// Store writes and queries decision records in authz_audit_logs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert persists one entry.
func (s *Store) Insert(ctx context.Context, entry authz.AuditEntry) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: store not initialised")
	}
	if entry.ActorID == "" || entry.Action == "" {
		return errors.New("audit: entry requires actor and action")
	}
	metaJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("audit: marshal metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO authz_audit_logs (id, actor_id, action, resource, result, reason, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		entry.ID, entry.ActorID, entry.Action, entry.Resource, entry.Result, entry.Reason, metaJSON, nullableTime(entry.At))
	return err
}

// DeleteOlderThan removes entries older than the cutoff and returns the
// number of rows deleted. Used by the retention sweep job.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM authz_audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TimelineWindow returns one page of entries matching the filters, newest
// first. Limit should be pageSize+1 so the caller can detect a next page.
func (s *Store) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT actor_id, action, resource, result, reason, occurred_at
FROM authz_audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at <= $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR resource = $4)
  AND ($5::text IS NULL OR result = $5)
ORDER BY occurred_at DESC
OFFSET $6 LIMIT $7`,
		nullableTime(filters.From), nullableTime(filters.To),
		nullableText(filters.Actor), nullableText(filters.Resource), nullableText(filters.Result),
		offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.ActorID, &row.Action, &row.Resource, &row.Result, &row.Reason, &row.At); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
