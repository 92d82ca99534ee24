package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	values map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := m.values[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	m.values[key] = "1"
	cmd.SetVal(true)
	return cmd
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func TestSetNXFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	set, err := client.SetNX(ctx, "k", "1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set {
		t.Fatalf("expected first SetNX to win")
	}

	set, err = client.SetNX(ctx, "k", "1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set {
		t.Fatalf("expected second SetNX to lose")
	}

	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("unexpected del error: %v", err)
	}

	set, err = client.SetNX(ctx, "k", "1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set {
		t.Fatalf("expected SetNX to win after delete")
	}
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	client := &Client{}
	key := client.IdempotencyKey("stripe-webhook", "evt_123")
	want := "veridia:idempotency:stripe-webhook:evt_123"
	if key != want {
		t.Fatalf("unexpected key %q, want %q", key, want)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	var client Client
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if _, err := client.SetNX(context.Background(), "k", "1", 0); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
}
