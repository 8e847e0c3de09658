package engine

import (
	"context"
	"fmt"
	"log"

	"fieldsync-agent/internal/domain"
)

// nextActionIDLocked allocates a unique, monotonically-ordered action id:
// the unix-millisecond timestamp plus a per-millisecond sequence suffix, so
// two enqueues within the same millisecond still sort in insertion order.
func (e *Engine) nextActionIDLocked() string {
	milli := e.now().UnixMilli()
	if milli <= e.lastIDMilli {
		e.idSeq++
	} else {
		e.lastIDMilli = milli
		e.idSeq = 0
	}
	return fmt.Sprintf("%d-%04d", e.lastIDMilli, e.idSeq)
}

// enqueueLocked appends one action to the queue tail. Durability is the
// caller's job: every mutation persists the snapshot before returning.
func (e *Engine) enqueueLocked(typ domain.ActionType, payload domain.ActionPayload) *domain.OfflineAction {
	action := &domain.OfflineAction{
		ID:        e.nextActionIDLocked(),
		Type:      typ,
		Payload:   payload,
		CreatedAt: e.now(),
	}
	e.queue = append(e.queue, action)
	return action
}

func (e *Engine) logQueued(a *domain.OfflineAction) {
	log.Printf("engine queued action=%s type=%s task=%d", a.ID, a.Type, a.Payload.TaskID())
}

// RequeueDeadLetter moves dead-lettered actions back to the front of the
// queue (they predate everything queued since) for another replay attempt,
// e.g. after the operator fixed the server-side rejection cause.
func (e *Engine) RequeueDeadLetter(ctx context.Context) error {
	e.mu.Lock()

	if len(e.deadLetter) == 0 {
		e.mu.Unlock()
		return nil
	}

	prevQueue, prevDead := e.queue, e.deadLetter
	prevErrs := make([]string, len(e.deadLetter))
	requeued := make([]*domain.OfflineAction, 0, len(e.deadLetter)+len(e.queue))
	for i, a := range e.deadLetter {
		prevErrs[i] = a.LastError
		a.LastError = ""
		requeued = append(requeued, a)
	}
	e.queue = append(requeued, e.queue...)
	e.deadLetter = nil

	if err := e.persistLocked(ctx); err != nil {
		for i, a := range prevDead {
			a.LastError = prevErrs[i]
		}
		e.queue, e.deadLetter = prevQueue, prevDead
		e.mu.Unlock()
		e.sink("requeue_dead_letter", err)
		return fmt.Errorf("requeue dead letter: %w", err)
	}
	e.mu.Unlock()

	log.Printf("engine requeued dead letter actions=%d", len(prevDead))
	return nil
}

// ClearDeadLetter discards all dead-lettered actions.
func (e *Engine) ClearDeadLetter(ctx context.Context) error {
	e.mu.Lock()

	if len(e.deadLetter) == 0 {
		e.mu.Unlock()
		return nil
	}

	prev := e.deadLetter
	e.deadLetter = nil

	if err := e.persistLocked(ctx); err != nil {
		e.deadLetter = prev
		e.mu.Unlock()
		e.sink("clear_dead_letter", err)
		return fmt.Errorf("clear dead letter: %w", err)
	}
	e.mu.Unlock()
	return nil
}
