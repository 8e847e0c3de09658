package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/ports"
)

// In-memory StateStore for tests. Snapshots pass through a JSON round-trip
// so tests observe exactly what a durable store would read back, and every
// saved generation is retained for ordering assertions. FailNext makes the
// next Save fail once, for write-ahead error paths.
type MemStateStore struct {
	mu       sync.Mutex
	last     []byte
	Saves    [][]byte
	FailNext error
}

func NewMemStateStore() *MemStateStore {
	return &MemStateStore{}
}

func (m *MemStateStore) Save(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("mem store save: %w", err)
	}
	m.last = raw
	m.Saves = append(m.Saves, raw)
	return nil
}

func (m *MemStateStore) Load(context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last == nil {
		return nil, ports.ErrNoSnapshot
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(m.last, &snap); err != nil {
		return nil, fmt.Errorf("mem store load: %w", err)
	}
	return &snap, nil
}

// LastSnapshot decodes the most recent save, or nil when nothing was saved.
func (m *MemStateStore) LastSnapshot() *domain.Snapshot {
	snap, err := m.Load(context.Background())
	if err != nil {
		return nil
	}
	return snap
}
