package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/ports"
)

// Redis backed snapshot store, used by depot-dock kiosks that share one
// local Redis instance instead of per-device SQLite. A single SET per save
// gives the same all-or-nothing overwrite semantics as the SQLite store.
type RedisStateStore struct {
	Client *redis.Client
	Key    string
}

func NewRedisStateStore(client *redis.Client, deviceID string) *RedisStateStore {
	return &RedisStateStore{
		Client: client,
		Key:    "fieldsync:snapshot:" + deviceID,
	}
}

func (s *RedisStateStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	if s.Client == nil {
		return errors.New("snapshot store: redis client is nil")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: marshal: %w", err)
	}

	if err := s.Client.Set(ctx, s.Key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: redis set %q: %w", s.Key, err)
	}
	return nil
}

func (s *RedisStateStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if s.Client == nil {
		return nil, errors.New("snapshot store: redis client is nil")
	}

	raw, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: redis get %q: %w", s.Key, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("load snapshot: unmarshal: %w", err)
	}
	return &snap, nil
}
