package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/ports"
)

// Key under which the single snapshot row lives. The store is a full
// overwrite of one record, not an incremental diff.
const snapshotKey = "engine_state"

// SQLite backed snapshot store for the driver device. The snapshot is
// written inside a transaction as one INSERT OR REPLACE, so a crash
// mid-write leaves either the previous row or the new one, never a torn
// record.
type SqliteStateStore struct {
	DB *sql.DB
}

func NewSqliteStateStore(db *sql.DB) *SqliteStateStore {
	return &SqliteStateStore{DB: db}
}

// InitSchema creates the snapshot table if missing.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS engine_snapshots (
        key TEXT PRIMARY KEY,
        snapshot TEXT NOT NULL,
        updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
    );
	`)
	if err != nil {
		return fmt.Errorf("init snapshot schema: %w", err)
	}
	return nil
}

func (s *SqliteStateStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	if s.DB == nil {
		return errors.New("snapshot store: db is nil")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("save snapshot: marshal: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO engine_snapshots (key, snapshot, updated_at)
    VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	`, snapshotKey, string(raw))
	if err != nil {
		return fmt.Errorf("save snapshot: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

func (s *SqliteStateStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if s.DB == nil {
		return nil, errors.New("snapshot store: db is nil")
	}

	var raw string
	err := s.DB.QueryRowContext(ctx, `
	SELECT snapshot FROM engine_snapshots WHERE key = ?
	`, snapshotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: query: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("load snapshot: unmarshal: %w", err)
	}
	return &snap, nil
}
