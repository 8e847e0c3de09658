package dto

import (
	"time"

	"fieldsync-agent/internal/domain"
)

// Engine state surfaced to the UI layer for "pending sync" indicators.
type StateResponse struct {
	Online        bool       `json:"online"`
	IsSyncing     bool       `json:"is_syncing"`
	QueueLength   int        `json:"queue_length"`
	DeadLetterLen int        `json:"dead_letter_length"`
	CurrentTaskID int        `json:"current_task_id,omitempty"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

type ActionResponse struct {
	ID        string            `json:"id"`
	Type      domain.ActionType `json:"type"`
	TaskID    int               `json:"task_id"`
	CreatedAt time.Time         `json:"created_at"`
	Attempts  int               `json:"attempts,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

type ListActionsResponse struct {
	Actions []ActionResponse `json:"actions"`
}

func FromAction(a *domain.OfflineAction) ActionResponse {
	return ActionResponse{
		ID:        a.ID,
		Type:      a.Type,
		TaskID:    a.Payload.TaskID(),
		CreatedAt: a.CreatedAt,
		Attempts:  a.Attempts,
		LastError: a.LastError,
	}
}

type SyncResponse struct {
	Skipped      bool `json:"skipped"`
	Attempted    int  `json:"attempted"`
	Synced       int  `json:"synced"`
	Failed       int  `json:"failed"`
	DeadLettered int  `json:"dead_lettered"`
}
