package domain

import "time"

// Version stamped into every persisted snapshot. Hydration rejects records
// with a different version instead of guessing at their layout.
const SnapshotSchemaVersion = 1

// The full durable state of the engine, written as one atomic record on
// every mutation and read back once at startup.
type Snapshot struct {
	SchemaVersion int              `json:"schema_version"`
	Tasks         []*DeliveryTask  `json:"tasks"`
	CurrentTaskID int              `json:"current_task_id,omitempty"`
	OfflineQueue  []*OfflineAction `json:"offline_queue"`
	DeadLetter    []*OfflineAction `json:"dead_letter,omitempty"`
	LastSyncAt    *time.Time       `json:"last_sync_at,omitempty"`
}
