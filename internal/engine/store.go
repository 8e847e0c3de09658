package engine

import (
	"context"
	"fmt"

	"fieldsync-agent/internal/domain"
)

// SetTasks replaces the task collection with an authoritative server fetch.
// The input is de-duplicated by id, first occurrence wins. No queue entry is
// created.
//
// Conflict rule: a task that still has unsynced queued actions keeps its
// local status and POD fields over the server's view. The queue is the
// record of what the server has not seen yet; once those actions are acked,
// the next fetch wins.
func (e *Engine) SetTasks(ctx context.Context, list []*domain.DeliveryTask) error {
	e.mu.Lock()

	pending := make(map[int]bool, len(e.queue))
	for _, a := range e.queue {
		pending[a.Payload.TaskID()] = true
	}

	seen := make(map[int]bool, len(list))
	next := make([]*domain.DeliveryTask, 0, len(list))
	for _, t := range list {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		incoming := t.Clone()
		if pending[t.ID] {
			if local := e.findTaskLocked(t.ID); local != nil {
				incoming.Status = local.Status
				incoming.PODPhotos = append([]string(nil), local.PODPhotos...)
				incoming.PODSignature = local.PODSignature
				incoming.PODNotes = local.PODNotes
				incoming.CompletedAt = local.CompletedAt
			}
		}
		next = append(next, incoming)
	}

	prevTasks, prevCurrent := e.tasks, e.currentTaskID
	e.tasks = next
	if e.currentTaskID != 0 && e.findTaskLocked(e.currentTaskID) == nil {
		e.currentTaskID = 0
	}

	if err := e.persistLocked(ctx); err != nil {
		e.tasks, e.currentTaskID = prevTasks, prevCurrent
		e.mu.Unlock()
		e.sink("set_tasks", err)
		return fmt.Errorf("set tasks: %w", err)
	}
	e.mu.Unlock()
	return nil
}

// UpdateTaskStatus applies a validated status transition and queues the
// matching update_status action. An edge outside the allowed graph is
// rejected and nothing is queued or persisted.
func (e *Engine) UpdateTaskStatus(ctx context.Context, taskID int, change domain.StatusChange) error {
	e.mu.Lock()

	task := e.findTaskLocked(taskID)
	if task == nil {
		e.mu.Unlock()
		return fmt.Errorf("update task status: %w", &domain.UnknownTaskError{TaskID: taskID})
	}

	prev := task.Status
	if err := task.Transition(change.Status); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("update task status: %w", err)
	}

	action := e.enqueueLocked(domain.ActionUpdateStatus, domain.StatusUpdatePayload{
		Task:   taskID,
		Status: change.Status,
		Notes:  change.Notes,
		Lat:    change.Lat,
		Lng:    change.Lng,
	})

	if err := e.persistLocked(ctx); err != nil {
		task.Status = prev
		e.queue = e.queue[:len(e.queue)-1]
		e.mu.Unlock()
		e.sink("update_status", err)
		return fmt.Errorf("update task status: %w", err)
	}

	e.mu.Unlock()
	e.logQueued(action)
	e.kickSync()
	return nil
}

// AddPodPhoto appends a captured photo URI to the task's proof-of-delivery
// set. Local-only: photos are never queued individually, CompleteTask
// bundles them into one upload_pod action.
func (e *Engine) AddPodPhoto(ctx context.Context, taskID int, uri string) error {
	e.mu.Lock()

	task := e.findTaskLocked(taskID)
	if task == nil {
		e.mu.Unlock()
		return fmt.Errorf("add pod photo: %w", &domain.UnknownTaskError{TaskID: taskID})
	}
	if task.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("add pod photo: task %d is %s", taskID, task.Status)
	}

	task.PODPhotos = append(task.PODPhotos, uri)

	if err := e.persistLocked(ctx); err != nil {
		task.PODPhotos = task.PODPhotos[:len(task.PODPhotos)-1]
		e.mu.Unlock()
		e.sink("add_pod_photo", err)
		return fmt.Errorf("add pod photo: %w", err)
	}
	e.mu.Unlock()
	return nil
}

// CompleteTask marks the task completed, stamps completed_at, clears the
// current-task pointer and queues exactly one upload_pod action carrying the
// aggregated POD bundle (photos already on the task, signature, notes,
// damage report).
func (e *Engine) CompleteTask(ctx context.Context, taskID int, bundle domain.PODBundle) error {
	e.mu.Lock()

	task := e.findTaskLocked(taskID)
	if task == nil {
		e.mu.Unlock()
		return fmt.Errorf("complete task: %w", &domain.UnknownTaskError{TaskID: taskID})
	}

	prev := task.Clone()
	if err := task.Transition(domain.StatusCompleted); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("complete task: %w", err)
	}

	completedAt := e.now()
	task.CompletedAt = &completedAt
	task.PODSignature = bundle.Signature
	task.PODNotes = bundle.Notes

	prevCurrent := e.currentTaskID
	if e.currentTaskID == taskID {
		e.currentTaskID = 0
	}

	action := e.enqueueLocked(domain.ActionUploadPOD, domain.PODUploadPayload{
		Task:        taskID,
		PhotoURIs:   append([]string(nil), task.PODPhotos...),
		Signature:   bundle.Signature,
		Notes:       bundle.Notes,
		Damaged:     bundle.Damaged,
		DamageNotes: bundle.DamageNotes,
		CompletedAt: completedAt,
	})

	if err := e.persistLocked(ctx); err != nil {
		*task = *prev
		e.currentTaskID = prevCurrent
		e.queue = e.queue[:len(e.queue)-1]
		e.mu.Unlock()
		e.sink("complete_task", err)
		return fmt.Errorf("complete task: %w", err)
	}

	e.mu.Unlock()
	e.logQueued(action)
	e.kickSync()
	return nil
}

// SignECMR records the consignee's e-CMR signature and queues it for
// submission.
func (e *Engine) SignECMR(ctx context.Context, taskID int, signature string) error {
	e.mu.Lock()

	task := e.findTaskLocked(taskID)
	if task == nil {
		e.mu.Unlock()
		return fmt.Errorf("sign ecmr: %w", &domain.UnknownTaskError{TaskID: taskID})
	}
	if signature == "" {
		e.mu.Unlock()
		return fmt.Errorf("sign ecmr: task %d: empty signature", taskID)
	}

	signedAt := e.now()
	prev := task.ECMRSignedAt
	task.ECMRSignedAt = &signedAt

	action := e.enqueueLocked(domain.ActionSignECMR, domain.ECMRSignPayload{
		Task:      taskID,
		Signature: signature,
		SignedAt:  signedAt,
	})

	if err := e.persistLocked(ctx); err != nil {
		task.ECMRSignedAt = prev
		e.queue = e.queue[:len(e.queue)-1]
		e.mu.Unlock()
		e.sink("sign_ecmr", err)
		return fmt.Errorf("sign ecmr: %w", err)
	}

	e.mu.Unlock()
	e.logQueued(action)
	e.kickSync()
	return nil
}

// ReportLocation queues a position report for a task.
func (e *Engine) ReportLocation(ctx context.Context, taskID int, lat, lng float64) error {
	e.mu.Lock()

	if task := e.findTaskLocked(taskID); task == nil {
		e.mu.Unlock()
		return fmt.Errorf("report location: %w", &domain.UnknownTaskError{TaskID: taskID})
	}

	action := e.enqueueLocked(domain.ActionUpdateLocation, domain.LocationUpdatePayload{
		Task:       taskID,
		Lat:        lat,
		Lng:        lng,
		RecordedAt: e.now(),
	})

	if err := e.persistLocked(ctx); err != nil {
		e.queue = e.queue[:len(e.queue)-1]
		e.mu.Unlock()
		e.sink("report_location", err)
		return fmt.Errorf("report location: %w", err)
	}

	e.mu.Unlock()
	e.logQueued(action)
	e.kickSync()
	return nil
}

// SetCurrentTask points the store at the task the driver is working on.
// Pure assignment: no queue entry and no immediate persist (the pointer
// rides along with the next persisted mutation).
func (e *Engine) SetCurrentTask(taskID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if taskID == 0 {
		e.currentTaskID = 0
		return nil
	}
	if e.findTaskLocked(taskID) == nil {
		return fmt.Errorf("set current task: %w", &domain.UnknownTaskError{TaskID: taskID})
	}
	e.currentTaskID = taskID
	return nil
}
