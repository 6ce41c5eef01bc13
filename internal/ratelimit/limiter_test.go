package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/r2suporte/interalpha/internal/authz"
	_ "github.com/r2suporte/interalpha/testing"
)

func newTestLimiter(t *testing.T, failOpen bool) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, authz.NewRegistry(), failOpen, nil), mr
}

func TestAllowWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t, false)
	ctx := context.Background()

	budget, ok := authz.NewRegistry().RateBudget(authz.RoleAtendente)
	if !ok {
		t.Fatalf("atendente needs a budget")
	}

	for i := 0; i < budget.Requests; i++ {
		allowed, err := limiter.Allow(ctx, "at-1", authz.RoleAtendente)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("call %d should fit the budget of %d", i+1, budget.Requests)
		}
	}

	allowed, err := limiter.Allow(ctx, "at-1", authz.RoleAtendente)
	if err != nil {
		t.Fatalf("allow over budget: %v", err)
	}
	if allowed {
		t.Fatalf("call %d must exceed the budget", budget.Requests+1)
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, false)
	ctx := context.Background()

	budget, _ := authz.NewRegistry().RateBudget(authz.RoleAtendente)
	for i := 0; i < budget.Requests+1; i++ {
		_, _ = limiter.Allow(ctx, "at-1", authz.RoleAtendente)
	}

	base := time.Now()
	limiter.now = func() time.Time { return base.Add(budget.Window + time.Second) }

	allowed, err := limiter.Allow(ctx, "at-1", authz.RoleAtendente)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatalf("a new window should reset the counter")
	}
}

func TestAllowCountersAreIndependentPerActor(t *testing.T) {
	limiter, _ := newTestLimiter(t, false)
	ctx := context.Background()

	budget, _ := authz.NewRegistry().RateBudget(authz.RoleAtendente)
	for i := 0; i < budget.Requests+1; i++ {
		_, _ = limiter.Allow(ctx, "at-1", authz.RoleAtendente)
	}

	allowed, err := limiter.Allow(ctx, "at-2", authz.RoleAtendente)
	if err != nil {
		t.Fatalf("allow other actor: %v", err)
	}
	if !allowed {
		t.Fatalf("another actor's budget must be untouched")
	}
}

func TestAllowUnknownRole(t *testing.T) {
	limiter, _ := newTestLimiter(t, false)

	allowed, err := limiter.Allow(context.Background(), "x-1", authz.Role("estagiario"))
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if allowed {
		t.Fatalf("unknown role must be denied")
	}
}

func TestAllowFailPolicy(t *testing.T) {
	closedLimiter, mr := newTestLimiter(t, false)
	mr.Close()
	allowed, err := closedLimiter.Allow(context.Background(), "at-1", authz.RoleAtendente)
	if err == nil {
		t.Fatalf("expected an error from a dead redis")
	}
	if allowed {
		t.Fatalf("fail-closed limiter must deny when redis is down")
	}

	openLimiter, mr := newTestLimiter(t, true)
	mr.Close()
	allowed, err = openLimiter.Allow(context.Background(), "at-1", authz.RoleAtendente)
	if err == nil {
		t.Fatalf("expected an error from a dead redis")
	}
	if !allowed {
		t.Fatalf("fail-open limiter must allow when redis is down")
	}
}
