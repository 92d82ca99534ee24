package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veridia-labs/veridia-backend/pkg/redis"
)

// IdempotencyGuard short-circuits redelivered events by event id. It is a
// fast path only: when Redis is down or the guard is absent, the conditional
// state transition in the store still makes replays harmless.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark returns true when the event id was already seen. A nil guard
// reports an error rather than panicking so callers holding a typed nil
// degrade the same way a Redis outage does.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if g == nil || g.store == nil {
		return false, errors.New("idempotency guard not configured")
	}
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the mark so a failed event can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if g == nil || g.store == nil {
		return errors.New("idempotency guard not configured")
	}
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
