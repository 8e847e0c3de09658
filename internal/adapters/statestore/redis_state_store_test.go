package statestore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"fieldsync-agent/internal/ports"
)

func newRedisStore(t *testing.T) *RedisStateStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStateStore(client, "device-42")
}

func TestRedisStateStoreRoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	want := sampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSnapshotEqual(t, got, want)
}

func TestRedisStateStoreKeyPerDevice(t *testing.T) {
	store := newRedisStore(t)

	if store.Key != "fieldsync:snapshot:device-42" {
		t.Fatalf("key = %q", store.Key)
	}
}

func TestRedisStateStoreEmpty(t *testing.T) {
	store := newRedisStore(t)

	_, err := store.Load(context.Background())
	if !errors.Is(err, ports.ErrNoSnapshot) {
		t.Fatalf("error = %v, want ErrNoSnapshot", err)
	}
}
