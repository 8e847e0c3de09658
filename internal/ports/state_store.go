package ports

import (
	"context"
	"errors"

	"fieldsync-agent/internal/domain"
)

// Returned by Load when no snapshot has ever been written.
var ErrNoSnapshot = errors.New("state store: no snapshot")

// Port: durable storage for the engine's full-state snapshot.
// Save must be atomic: a crash mid-write leaves either the previous snapshot
// or the new one readable, never a torn record.
type StateStore interface {
	// Persist the snapshot as a full overwrite under the store's fixed key.
	Save(ctx context.Context, snap *domain.Snapshot) error
	// Read the last persisted snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) (*domain.Snapshot, error)
}
