package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/r2suporte/interalpha/internal/authz"
)

type cachedUser struct {
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
	Found    bool   `json:"found"`
}

// Cached wraps a Directory with a short-TTL Redis cache. Authorization is
// read-hot: every decision touches the directory at least once, so lookups
// for the same user are collapsed with singleflight and served from Redis
// between refreshes. Cache failures fall through to the inner directory.
type Cached struct {
	inner  authz.Directory
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCached builds a caching directory. ttl zero falls back to 30s.
func NewCached(inner authz.Directory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{inner: inner, client: client, ttl: ttl, logger: logger}
}

// GetRole returns the cached role for userID.
func (c *Cached) GetRole(ctx context.Context, userID string) (authz.Role, error) {
	user, err := c.lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.Found {
		return "", authz.ErrUserNotFound
	}
	return authz.Role(user.Role), nil
}

// IsActive returns the cached liveness flag for userID.
func (c *Cached) IsActive(ctx context.Context, userID string) (bool, error) {
	user, err := c.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.Found {
		return false, authz.ErrUserNotFound
	}
	return user.IsActive, nil
}

// Invalidate drops the cached record for userID, e.g. after an
// administrative role change.
func (c *Cached) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		c.logger.Warn("directory cache invalidate",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

func (c *Cached) lookup(ctx context.Context, userID string) (cachedUser, error) {
	key := cacheKey(userID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var user cachedUser
		if err := json.Unmarshal(raw, &user); err == nil {
			return user, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("directory cache read",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		user, err := c.fetch(ctx, userID)
		if err != nil {
			return cachedUser{}, err
		}
		if raw, err := json.Marshal(user); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("directory cache write",
					slog.String("user_id", userID),
					slog.Any("error", err))
			}
		}
		return user, nil
	})
	if err != nil {
		return cachedUser{}, err
	}
	return value.(cachedUser), nil
}

// fetch resolves the user from the inner directory. Unknown users are cached
// as misses so repeated probes for bogus IDs do not hammer the database.
func (c *Cached) fetch(ctx context.Context, userID string) (cachedUser, error) {
	role, err := c.inner.GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, authz.ErrUserNotFound) {
			return cachedUser{Found: false}, nil
		}
		return cachedUser{}, err
	}
	active, err := c.inner.IsActive(ctx, userID)
	if err != nil {
		if errors.Is(err, authz.ErrUserNotFound) {
			return cachedUser{Found: false}, nil
		}
		return cachedUser{}, err
	}
	return cachedUser{Role: string(role), IsActive: active, Found: true}, nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("directory:user:%s", userID)
}
