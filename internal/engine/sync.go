package engine

import (
	"context"
	"fmt"
	"log"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/platform/obs"
	"fieldsync-agent/internal/ports"
)

// Outcome of one drain pass over the offline queue.
type SyncResult struct {
	// Skipped is true when the pass did not run: either a drain was
	// already in flight (single-flight guard) or the engine is offline.
	Skipped      bool
	Attempted    int
	Synced       int
	Failed       int
	DeadLettered int
}

// SetOnline feeds a connectivity transition into the engine. A false->true
// edge drains the offline queue before returning; a true->false edge only
// flips the flag, so subsequent mutations keep queuing.
func (e *Engine) SetOnline(ctx context.Context, online bool) error {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online == wasOnline {
		return nil
	}
	log.Printf("engine connectivity online=%t", online)

	if !online {
		return nil
	}

	if _, err := e.Sync(ctx); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// kickSync starts a background drain after a mutation performed while
// online, so the new queue entry does not sit until the next connectivity
// edge. The single-flight guard makes overlapping kicks harmless.
func (e *Engine) kickSync() {
	e.mu.Lock()
	shouldRun := e.online && !e.syncing
	if shouldRun {
		e.wg.Add(1)
	}
	e.mu.Unlock()

	if !shouldRun {
		return
	}

	go func() {
		defer e.wg.Done()
		if _, err := e.Sync(context.Background()); err != nil {
			e.sink("sync", err)
		}
	}()
}

// Sync drains the offline queue in FIFO order, replaying each action against
// the remote API. Single-flight: a call while a drain is active is a no-op.
//
// Failure policy is halt-per-task: the first failed action for a task blocks
// every later action for that same task during this pass, preserving the
// per-task causal order the server depends on. Actions for other tasks are
// still attempted. A transient failure leaves the action queued for the next
// pass; a definitive server rejection moves it to the dead-letter list.
//
// The pass always ends by persisting the surviving queue and stamping
// lastSyncAt, whether fully or partially drained.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	e.mu.Lock()
	if e.syncing || !e.online {
		e.mu.Unlock()
		return SyncResult{Skipped: true}, nil
	}
	e.syncing = true
	pending := make([]*domain.OfflineAction, len(e.queue))
	copy(pending, e.queue)
	e.mu.Unlock()

	var res SyncResult
	acked := make(map[string]bool)
	rejected := make(map[string]error)
	failed := make(map[string]error)
	blocked := make(map[int]bool)

	for _, action := range pending {
		taskID := action.Payload.TaskID()
		if blocked[taskID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}

		res.Attempted++
		err := e.replay(ctx, action)
		if err == nil {
			res.Synced++
			acked[action.ID] = true
			log.Printf("engine synced action=%s type=%s task=%d", action.ID, action.Type, taskID)
			continue
		}

		blocked[taskID] = true
		if ports.IsRejected(err) {
			res.DeadLettered++
			rejected[action.ID] = err
		} else {
			res.Failed++
			failed[action.ID] = err
		}
		e.sink("sync", fmt.Errorf("replay action %s (%s): %w", action.ID, action.Type, err))
	}

	e.mu.Lock()
	remaining := make([]*domain.OfflineAction, 0, len(e.queue))
	for _, action := range e.queue {
		switch {
		case acked[action.ID]:
			// confirmed by the server, drop from the queue
		case rejected[action.ID] != nil:
			action.Attempts++
			action.LastError = rejected[action.ID].Error()
			e.deadLetter = append(e.deadLetter, action)
		default:
			if err := failed[action.ID]; err != nil {
				action.Attempts++
				action.LastError = err.Error()
			}
			remaining = append(remaining, action)
		}
	}
	e.queue = remaining
	now := e.now()
	e.lastSyncAt = &now

	persistErr := e.persistLocked(ctx)
	e.syncing = false
	e.mu.Unlock()

	log.Printf(
		"engine sync done attempted=%d synced=%d failed=%d dead=%d remaining=%d",
		res.Attempted, res.Synced, res.Failed, res.DeadLettered, len(remaining),
	)

	if persistErr != nil {
		e.sink("sync", persistErr)
		return res, fmt.Errorf("sync: %w", persistErr)
	}
	return res, nil
}

// replay dispatches one queued action to the matching remote call, passing
// the action id as the idempotency key so a retried replay after a lost ack
// cannot duplicate server state.
func (e *Engine) replay(ctx context.Context, action *domain.OfflineAction) (err error) {
	ctx = context.WithValue(ctx, obs.ActionIDKey, action.ID)
	defer obs.Time(ctx, "replay_"+string(action.Type))(&err)

	switch p := action.Payload.(type) {
	case domain.StatusUpdatePayload:
		return e.api.UpdateStatus(ctx, action.ID, p)
	case domain.PODUploadPayload:
		return e.api.UploadPOD(ctx, action.ID, p)
	case domain.ECMRSignPayload:
		return e.api.SignECMR(ctx, action.ID, p)
	case domain.LocationUpdatePayload:
		return e.api.UpdateLocation(ctx, action.ID, p)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
