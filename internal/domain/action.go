package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind of a queued offline mutation.
type ActionType string

const (
	ActionUpdateStatus   ActionType = "update_status"
	ActionUploadPOD      ActionType = "upload_pod"
	ActionSignECMR       ActionType = "sign_ecmr"
	ActionUpdateLocation ActionType = "update_location"
)

// ActionPayload is the closed set of per-kind payloads. Each OfflineAction
// carries exactly the payload variant matching its Type; there are no shared
// optional fields across kinds.
type ActionPayload interface {
	actionPayload()
	// TaskID returns the task this mutation belongs to, used by the sync
	// drainer to preserve per-task ordering.
	TaskID() int
}

// Payload of an update_status action.
type StatusUpdatePayload struct {
	Task   int        `json:"task_id"`
	Status TaskStatus `json:"status"`
	Notes  string     `json:"notes,omitempty"`
	Lat    *float64   `json:"lat,omitempty"`
	Lng    *float64   `json:"lng,omitempty"`
}

// Payload of an upload_pod action: the aggregated proof-of-delivery bundle.
// Queued as one action so a replay is atomic from the server's perspective.
type PODUploadPayload struct {
	Task        int       `json:"task_id"`
	PhotoURIs   []string  `json:"photo_uris,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Damaged     bool      `json:"damaged,omitempty"`
	DamageNotes string    `json:"damage_notes,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Payload of a sign_ecmr action.
type ECMRSignPayload struct {
	Task      int       `json:"task_id"`
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signed_at"`
}

// Payload of an update_location action.
type LocationUpdatePayload struct {
	Task       int       `json:"task_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (StatusUpdatePayload) actionPayload()   {}
func (PODUploadPayload) actionPayload()      {}
func (ECMRSignPayload) actionPayload()       {}
func (LocationUpdatePayload) actionPayload() {}

func (p StatusUpdatePayload) TaskID() int   { return p.Task }
func (p PODUploadPayload) TaskID() int      { return p.Task }
func (p ECMRSignPayload) TaskID() int       { return p.Task }
func (p LocationUpdatePayload) TaskID() int { return p.Task }

// A durable record of a mutation performed while disconnected, awaiting
// remote confirmation. Append-only from the UI side; only the sync drainer
// flips Synced or removes entries. Never reordered.
type OfflineAction struct {
	ID        string        `json:"id"`
	Type      ActionType    `json:"type"`
	Payload   ActionPayload `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	Synced    bool          `json:"synced"`
	Attempts  int           `json:"attempts,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// offlineActionJSON is the persisted envelope: the payload is stored as raw
// JSON next to the type tag and decoded into the matching variant on load.
type offlineActionJSON struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Synced    bool            `json:"synced"`
	Attempts  int             `json:"attempts,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

func (a OfflineAction) MarshalJSON() ([]byte, error) {
	if a.Payload == nil {
		return nil, fmt.Errorf("marshal offline action %s: nil payload", a.ID)
	}

	raw, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal offline action %s payload: %w", a.ID, err)
	}

	return json.Marshal(offlineActionJSON{
		ID:        a.ID,
		Type:      a.Type,
		Payload:   raw,
		CreatedAt: a.CreatedAt,
		Synced:    a.Synced,
		Attempts:  a.Attempts,
		LastError: a.LastError,
	})
}

func (a *OfflineAction) UnmarshalJSON(data []byte) error {
	var env offlineActionJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal offline action: %w", err)
	}

	var payload ActionPayload
	switch env.Type {
	case ActionUpdateStatus:
		var p StatusUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		payload = p
	case ActionUploadPOD:
		var p PODUploadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		payload = p
	case ActionSignECMR:
		var p ECMRSignPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		payload = p
	case ActionUpdateLocation:
		var p LocationUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		payload = p
	default:
		return fmt.Errorf("unmarshal offline action %s: unknown type %q", env.ID, env.Type)
	}

	a.ID = env.ID
	a.Type = env.Type
	a.Payload = payload
	a.CreatedAt = env.CreatedAt
	a.Synced = env.Synced
	a.Attempts = env.Attempts
	a.LastError = env.LastError
	return nil
}
