package domain

import (
	"fmt"
	"time"
)

// Whether a task is a pickup or a delivery.
type TaskKind string

const (
	KindPickup   TaskKind = "pickup"
	KindDelivery TaskKind = "delivery"
)

// Lifecycle status of a DeliveryTask on the driver's device.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusEnRoute   TaskStatus = "en_route"
	StatusArrived   TaskStatus = "arrived"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// statusEdges is the full set of allowed status transitions.
// completed and failed are terminal: no edge leaves them.
var statusEdges = map[TaskStatus][]TaskStatus{
	StatusPending: {StatusEnRoute, StatusFailed},
	StatusEnRoute: {StatusArrived, StatusFailed},
	StatusArrived: {StatusCompleted, StatusFailed},
}

// Returned when an operation names a task id not present in the store.
type UnknownTaskError struct {
	TaskID int
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %d", e.TaskID)
}

// Returned when a requested status transition is not in the allowed graph.
type InvalidTransitionError struct {
	TaskID int
	From   TaskStatus
	To     TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf(
		"invalid status transition for task %d: %s -> %s",
		e.TaskID, e.From, e.To,
	)
}

// CanTransition reports whether from -> to is an allowed status edge.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no edge leaves the given status.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status value.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusEnRoute, StatusArrived, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// StatusChange carries a requested status transition together with its
// context: free-text notes and the driver's position at the time.
type StatusChange struct {
	Status TaskStatus
	Notes  string
	Lat    *float64
	Lng    *float64
}

// A single pickup or delivery assignment tracked on the driver's device.
// Owned by the engine's task store; mutated only through its operations and
// replaced wholesale when an authoritative task list arrives from the server.
type DeliveryTask struct {
	ID          int      `json:"id"`
	OrderID     int      `json:"order_id"`
	OrderNumber string   `json:"order_number"`
	Kind        TaskKind `json:"kind"`

	Status TaskStatus `json:"status"`

	Address      string `json:"address"`
	City         string `json:"city"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`

	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	TimeWindowStart string     `json:"time_window_start,omitempty"`
	TimeWindowEnd   string     `json:"time_window_end,omitempty"`

	CargoDescription string  `json:"cargo_description,omitempty"`
	CargoWeightKg    float64 `json:"cargo_weight_kg,omitempty"`

	PODPhotos    []string   `json:"pod_photos,omitempty"`
	PODSignature string     `json:"pod_signature,omitempty"`
	PODNotes     string     `json:"pod_notes,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ECMRSignedAt *time.Time `json:"ecmr_signed_at,omitempty"`
}

// Transition applies a validated status change. Any edge outside the allowed
// graph is rejected with an InvalidTransitionError and the task is unchanged.
func (t *DeliveryTask) Transition(to TaskStatus) error {
	if !CanTransition(t.Status, to) {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// Clone returns a deep copy, so callers can hand tasks across a boundary
// without sharing the photo slice or timestamp pointers.
func (t *DeliveryTask) Clone() *DeliveryTask {
	if t == nil {
		return nil
	}
	cp := *t
	if t.PODPhotos != nil {
		cp.PODPhotos = append([]string(nil), t.PODPhotos...)
	}
	if t.ScheduledAt != nil {
		at := *t.ScheduledAt
		cp.ScheduledAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	if t.ECMRSignedAt != nil {
		at := *t.ECMRSignedAt
		cp.ECMRSignedAt = &at
	}
	return &cp
}
