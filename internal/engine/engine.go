package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/ports"
)

// ErrorSink receives engine-layer failures that must not block the UI path
// (failed replays, persistence errors). Never called while the engine lock
// is held.
type ErrorSink func(op string, err error)

func defaultSink(op string, err error) {
	log.Printf("engine op=%s err=%v", op, err)
}

// Engine owns the device-side task store, the offline action queue and the
// sync drainer. One instance is created by the application root and passed
// to the API and sync layers; there is no package-level state.
//
// All mutations are synchronous and optimistic: the in-memory change and the
// matching queue entry are persisted before the call returns, so a process
// kill after a successful return cannot lose the mutation.
type Engine struct {
	store ports.StateStore
	api   ports.TaskAPI
	sink  ErrorSink
	now   func() time.Time

	mu            sync.Mutex
	tasks         []*domain.DeliveryTask
	currentTaskID int
	queue         []*domain.OfflineAction
	deadLetter    []*domain.OfflineAction
	lastSyncAt    *time.Time
	online        bool
	syncing       bool

	// action id allocation state, see nextActionIDLocked
	lastIDMilli int64
	idSeq       int

	wg sync.WaitGroup
}

type Option func(*Engine)

// WithErrorSink routes engine failures to sink instead of the log.
func WithErrorSink(sink ErrorSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store ports.StateStore, api ports.TaskAPI, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		api:   api,
		sink:  defaultSink,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hydrate loads the last persisted snapshot into the engine. A store with no
// snapshot yet is not an error; an unknown schema version is.
func (e *Engine) Hydrate(ctx context.Context) error {
	snap, err := e.store.Load(ctx)
	if errors.Is(err, ports.ErrNoSnapshot) {
		log.Printf("engine hydrate: no snapshot, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("hydrate: load snapshot: %w", err)
	}

	if snap.SchemaVersion != domain.SnapshotSchemaVersion {
		return fmt.Errorf(
			"hydrate: unsupported snapshot schema_version=%d (want %d)",
			snap.SchemaVersion, domain.SnapshotSchemaVersion,
		)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = snap.Tasks
	e.currentTaskID = snap.CurrentTaskID
	e.queue = snap.OfflineQueue
	e.deadLetter = snap.DeadLetter
	e.lastSyncAt = snap.LastSyncAt

	log.Printf(
		"engine hydrate: tasks=%d queued=%d dead=%d",
		len(e.tasks), len(e.queue), len(e.deadLetter),
	)
	return nil
}

// Dispose waits for any in-flight background drain to finish. The final
// state is already durable; Dispose only quiesces goroutines.
func (e *Engine) Dispose() {
	e.wg.Wait()
}

// persistLocked writes the full snapshot through the state store. Callers
// hold e.mu, which also serializes writes: a mutation is not committed until
// its snapshot is durable.
func (e *Engine) persistLocked(ctx context.Context) error {
	snap := &domain.Snapshot{
		SchemaVersion: domain.SnapshotSchemaVersion,
		Tasks:         e.tasks,
		CurrentTaskID: e.currentTaskID,
		OfflineQueue:  e.queue,
		DeadLetter:    e.deadLetter,
		LastSyncAt:    e.lastSyncAt,
	}
	if err := e.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func (e *Engine) findTaskLocked(taskID int) *domain.DeliveryTask {
	for _, t := range e.tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// Tasks returns a deep copy of the task collection in store order.
func (e *Engine) Tasks() []*domain.DeliveryTask {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*domain.DeliveryTask, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Task returns a copy of one task, or nil when unknown.
func (e *Engine) Task(taskID int) *domain.DeliveryTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findTaskLocked(taskID).Clone()
}

// CurrentTask returns a copy of the task the driver is working on, or nil.
func (e *Engine) CurrentTask() *domain.DeliveryTask {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentTaskID == 0 {
		return nil
	}
	return e.findTaskLocked(e.currentTaskID).Clone()
}

// Queue returns a copy of the pending offline actions in causal order.
func (e *Engine) Queue() []*domain.OfflineAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyActions(e.queue)
}

// DeadLetter returns a copy of the definitively rejected actions.
func (e *Engine) DeadLetter() []*domain.OfflineAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyActions(e.deadLetter)
}

func copyActions(actions []*domain.OfflineAction) []*domain.OfflineAction {
	out := make([]*domain.OfflineAction, 0, len(actions))
	for _, a := range actions {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// LastSyncAt returns when the last drain pass finished, or nil.
func (e *Engine) LastSyncAt() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSyncAt == nil {
		return nil
	}
	at := *e.lastSyncAt
	return &at
}
