package custperm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/r2suporte/interalpha/internal/authz"
)

// Cached wraps the repository with a Redis cache. Reads happen on every
// permission check; writes come from the administrative workflow and
// invalidate the user's cached list. Cache failures fall through to the
// repository.
type Cached struct {
	repo   *Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached builds a caching store. ttl zero falls back to one minute.
func NewCached(repo *Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{repo: repo, client: client, ttl: ttl, logger: logger}
}

// GetCustomPermissions returns the user's custom entries, cached.
func (c *Cached) GetCustomPermissions(ctx context.Context, userID string) ([]authz.CustomPermission, error) {
	key := cacheKey(userID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var perms []authz.CustomPermission
		if err := json.Unmarshal(raw, &perms); err == nil {
			return perms, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("custom permission cache read",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}

	perms, err := c.repo.GetCustomPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(perms); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("custom permission cache write",
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
	}
	return perms, nil
}

// Grant inserts a custom entry and invalidates the user's cache.
func (c *Cached) Grant(ctx context.Context, perm authz.CustomPermission) error {
	if err := c.repo.Grant(ctx, perm); err != nil {
		return err
	}
	c.invalidate(ctx, perm.UserID)
	return nil
}

// Revoke removes a custom entry and invalidates the user's cache.
func (c *Cached) Revoke(ctx context.Context, userID, resource, action string) error {
	if err := c.repo.Revoke(ctx, userID, resource, action); err != nil {
		return err
	}
	c.invalidate(ctx, userID)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.Warn("custom permission cache invalidate",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("custperm:user:%s", userID)
}
