// Package ratelimit enforces per-actor request budgets scaled by role
// hierarchy. Counters live in Redis so the increment-and-compare is atomic
// across concurrent requests and across instances.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/r2suporte/interalpha/internal/authz"
)

// ErrUnknownRole is returned when the role has no configured budget.
var ErrUnknownRole = errors.New("ratelimit: unknown role")

// Limiter tracks rolling request counts per actor. The fail policy decides
// the verdict when Redis is unreachable; the default is fail-closed.
type Limiter struct {
	client   *redis.Client
	registry *authz.Registry
	failOpen bool
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Limiter over the given Redis client and role registry.
func New(client *redis.Client, registry *authz.Registry, failOpen bool, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{client: client, registry: registry, failOpen: failOpen, logger: logger, now: time.Now}
}

// Allow increments the actor's counter for the current window and reports
// whether the request fits the role's budget. The returned error carries the
// cause when Redis failed; the bool already reflects the fail policy.
func (l *Limiter) Allow(ctx context.Context, actorID string, role authz.Role) (bool, error) {
	budget, ok := l.registry.RateBudget(role)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	window := l.now().UnixMilli() / budget.Window.Milliseconds()
	key := fmt.Sprintf("ratelimit:%s:%d", actorID, window)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, budget.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit counter",
			slog.String("actor_id", actorID),
			slog.Any("error", err))
		return l.failOpen, fmt.Errorf("ratelimit: counter for %s: %w", actorID, err)
	}

	return count.Val() <= int64(budget.Requests), nil
}
