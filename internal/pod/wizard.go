// Package pod implements the four-step proof-of-delivery capture workflow:
// status -> photos -> notes -> confirm. The wizard accumulates evidence
// against the engine's task store and, on submit, hands the engine one
// aggregated bundle; it never talks to the network itself, so submitting
// returns immediately regardless of connectivity.
package pod

import (
	"context"
	"fmt"

	"fieldsync-agent/internal/domain"
)

// Wizard step identifiers, in order.
type Step string

const (
	StepStatus  Step = "status"
	StepPhotos  Step = "photos"
	StepNotes   Step = "notes"
	StepConfirm Step = "confirm"
)

var stepOrder = []Step{StepStatus, StepPhotos, StepNotes, StepConfirm}

// TaskMutator is the slice of the engine the wizard drives.
type TaskMutator interface {
	UpdateTaskStatus(ctx context.Context, taskID int, change domain.StatusChange) error
	AddPodPhoto(ctx context.Context, taskID int, uri string) error
	CompleteTask(ctx context.Context, taskID int, bundle domain.PODBundle) error
}

// Wizard walks a driver through capturing POD evidence for one task.
// Steps advance only forward through Next (with Back allowed); Submit is
// valid only at the confirm step.
type Wizard struct {
	engine TaskMutator
	taskID int
	step   int

	arrivalDone bool
	issue       string

	photos      []string
	notes       string
	damaged     bool
	damageNotes string
	signature   string

	submitted bool
}

func NewWizard(engine TaskMutator, taskID int) *Wizard {
	return &Wizard{engine: engine, taskID: taskID}
}

func (w *Wizard) Step() Step { return stepOrder[w.step] }

func (w *Wizard) TaskID() int { return w.taskID }

// RecordArrival marks the task arrived in the store (status step).
func (w *Wizard) RecordArrival(ctx context.Context) error {
	if w.Step() != StepStatus {
		return fmt.Errorf("record arrival: wizard is at step %s", w.Step())
	}
	if w.arrivalDone {
		return nil
	}
	change := domain.StatusChange{Status: domain.StatusArrived}
	if err := w.engine.UpdateTaskStatus(ctx, w.taskID, change); err != nil {
		return fmt.Errorf("record arrival: %w", err)
	}
	w.arrivalDone = true
	return nil
}

// ReportIssue marks the task failed with a reason and ends the workflow:
// a failed task produces no POD bundle.
func (w *Wizard) ReportIssue(ctx context.Context, reason string) error {
	if w.Step() != StepStatus {
		return fmt.Errorf("report issue: wizard is at step %s", w.Step())
	}
	if reason == "" {
		return fmt.Errorf("report issue: reason is required")
	}
	change := domain.StatusChange{Status: domain.StatusFailed, Notes: reason}
	if err := w.engine.UpdateTaskStatus(ctx, w.taskID, change); err != nil {
		return fmt.Errorf("report issue: %w", err)
	}
	w.issue = reason
	w.submitted = true
	return nil
}

// AddPhoto stores one captured or picked photo URI on the task (photos step).
func (w *Wizard) AddPhoto(ctx context.Context, uri string) error {
	if w.Step() != StepPhotos {
		return fmt.Errorf("add photo: wizard is at step %s", w.Step())
	}
	if uri == "" {
		return fmt.Errorf("add photo: empty uri")
	}
	if err := w.engine.AddPodPhoto(ctx, w.taskID, uri); err != nil {
		return fmt.Errorf("add photo: %w", err)
	}
	w.photos = append(w.photos, uri)
	return nil
}

// SetNotes records the free-text notes and optional damage report
// (notes step).
func (w *Wizard) SetNotes(notes string, damaged bool, damageNotes string) error {
	if w.Step() != StepNotes {
		return fmt.Errorf("set notes: wizard is at step %s", w.Step())
	}
	if damaged && damageNotes == "" {
		return fmt.Errorf("set notes: damage description is required when damage is flagged")
	}
	w.notes = notes
	w.damaged = damaged
	w.damageNotes = damageNotes
	return nil
}

// SetSignature records the consignee's signature for the confirm step.
func (w *Wizard) SetSignature(signature string) {
	w.signature = signature
}

// Next advances to the following step. Leaving the status step requires a
// recorded arrival.
func (w *Wizard) Next() error {
	if w.submitted {
		return fmt.Errorf("wizard next: workflow already finished")
	}
	if w.Step() == StepStatus && !w.arrivalDone {
		return fmt.Errorf("wizard next: arrival not recorded")
	}
	if w.step == len(stepOrder)-1 {
		return fmt.Errorf("wizard next: already at %s", StepConfirm)
	}
	w.step++
	return nil
}

// Back returns to the previous step so the driver can amend evidence.
func (w *Wizard) Back() error {
	if w.submitted {
		return fmt.Errorf("wizard back: workflow already finished")
	}
	if w.step == 0 {
		return fmt.Errorf("wizard back: already at %s", StepStatus)
	}
	w.step--
	return nil
}

// Summary is what the confirm step presents before submission.
type Summary struct {
	TaskID      int      `json:"task_id"`
	Photos      []string `json:"photos"`
	Notes       string   `json:"notes,omitempty"`
	Damaged     bool     `json:"damaged,omitempty"`
	DamageNotes string   `json:"damage_notes,omitempty"`
	Signature   string   `json:"signature,omitempty"`
}

func (w *Wizard) Summary() Summary {
	return Summary{
		TaskID:      w.taskID,
		Photos:      append([]string(nil), w.photos...),
		Notes:       w.notes,
		Damaged:     w.damaged,
		DamageNotes: w.damageNotes,
		Signature:   w.signature,
	}
}

// Submit completes the task with the accumulated bundle. Valid only at the
// confirm step; the engine queues the upload and control returns without
// waiting on the network.
func (w *Wizard) Submit(ctx context.Context) error {
	if w.submitted {
		return fmt.Errorf("wizard submit: workflow already finished")
	}
	if w.Step() != StepConfirm {
		return fmt.Errorf("wizard submit: wizard is at step %s", w.Step())
	}

	err := w.engine.CompleteTask(ctx, w.taskID, domain.PODBundle{
		Signature:   w.signature,
		Notes:       w.notes,
		Damaged:     w.damaged,
		DamageNotes: w.damageNotes,
	})
	if err != nil {
		return fmt.Errorf("wizard submit: %w", err)
	}
	w.submitted = true
	return nil
}
