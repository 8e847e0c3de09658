package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fieldsync-agent/internal/adapters/remote"
	"fieldsync-agent/internal/adapters/statestore"
	"fieldsync-agent/internal/domain"
)

func testTasks() []*domain.DeliveryTask {
	return []*domain.DeliveryTask{
		{ID: 7, OrderID: 70, OrderNumber: "ORD-70", Kind: domain.KindDelivery, Status: domain.StatusArrived},
		{ID: 10, OrderID: 100, OrderNumber: "ORD-100", Kind: domain.KindDelivery, Status: domain.StatusEnRoute},
		{ID: 11, OrderID: 110, OrderNumber: "ORD-110", Kind: domain.KindPickup, Status: domain.StatusPending},
	}
}

func newTestEngine(t *testing.T) (*Engine, *statestore.MemStateStore, *remote.MockTaskAPI) {
	t.Helper()

	store := statestore.NewMemStateStore()
	api := remote.NewMockTaskAPI()
	now := time.Date(2026, 3, 14, 16, 20, 0, 0, time.UTC)
	eng := New(store, api, WithClock(func() time.Time { return now }))

	if err := eng.SetTasks(context.Background(), testTasks()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return eng, store, api
}

func TestCompleteTaskOfflineQueuesOneBundle(t *testing.T) {
	eng, store, api := newTestEngine(t)
	ctx := context.Background()

	// offline capture: photo, then completion with signature
	if err := eng.AddPodPhoto(ctx, 7, "file:///pod1.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.CompleteTask(ctx, 7, domain.PODBundle{Signature: "Jon Doe"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queue := eng.Queue()
	if len(queue) != 1 {
		t.Fatalf("queue length = %d, want exactly 1 bundled action", len(queue))
	}
	if queue[0].Type != domain.ActionUploadPOD {
		t.Fatalf("action type = %s, want %s", queue[0].Type, domain.ActionUploadPOD)
	}

	payload := queue[0].Payload.(domain.PODUploadPayload)
	if payload.Task != 7 || payload.Signature != "Jon Doe" {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.PhotoURIs) != 1 || payload.PhotoURIs[0] != "file:///pod1.jpg" {
		t.Fatalf("photo uris = %v", payload.PhotoURIs)
	}
	if payload.CompletedAt.IsZero() {
		t.Fatal("completed_at not stamped")
	}

	// going online drains the queue against an always-succeeding API
	if err := eng.SetOnline(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := eng.QueueLen(); got != 0 {
		t.Fatalf("queue length after sync = %d, want 0", got)
	}
	if task := eng.Task(7); task.Status != domain.StatusCompleted {
		t.Fatalf("task status = %s, want completed", task.Status)
	}
	if calls := api.CallLog(); len(calls) != 1 || calls[0] != "upload_pod:7" {
		t.Fatalf("api calls = %v", calls)
	}

	// durable record matches
	snap := store.LastSnapshot()
	if len(snap.OfflineQueue) != 0 {
		t.Fatalf("persisted queue not empty: %d entries", len(snap.OfflineQueue))
	}
}

func TestCompleteTaskClearsCurrentTask(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	if err := eng.SetCurrentTask(7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.CompleteTask(ctx, 7, domain.PODBundle{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current := eng.CurrentTask(); current != nil {
		t.Fatalf("current task = %+v, want nil", current)
	}
}

func TestInvalidTransitionRejectedAndNotQueued(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	// task 11 is pending; arrived is two edges away
	err := eng.UpdateTaskStatus(ctx, 11, domain.StatusChange{Status: domain.StatusArrived})
	if err == nil {
		t.Fatal("expected error for pending -> arrived")
	}
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	if task := eng.Task(11); task.Status != domain.StatusPending {
		t.Fatalf("task status = %s, want pending", task.Status)
	}
	if got := eng.QueueLen(); got != 0 {
		t.Fatalf("queue length = %d, want 0 after rejected transition", got)
	}
}

func TestUnknownTaskErrorsAreTyped(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	err := eng.UpdateTaskStatus(context.Background(), 999, domain.StatusChange{Status: domain.StatusArrived})
	if err == nil {
		t.Fatal("expected error for unknown task")
	}

	var unknown *domain.UnknownTaskError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTaskError, got %v", err)
	}
	if unknown.TaskID != 999 {
		t.Fatalf("error task id = %d, want 999", unknown.TaskID)
	}
}

func TestActionIDsDistinctAndOrderedWithinSameMillisecond(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	// the test clock is frozen: every enqueue lands on the same millisecond
	if err := eng.ReportLocation(ctx, 10, 33.45, -112.07); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.ReportLocation(ctx, 10, 33.46, -112.08); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.ReportLocation(ctx, 10, 33.47, -112.09); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queue := eng.Queue()
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}

	seen := map[string]bool{}
	for i, a := range queue {
		if seen[a.ID] {
			t.Fatalf("duplicate action id %q", a.ID)
		}
		seen[a.ID] = true
		if i > 0 && !(queue[i-1].ID < a.ID) {
			t.Fatalf("ids not ordered: %q then %q", queue[i-1].ID, a.ID)
		}
	}
}

func TestQueueOrderSurvivesPersistence(t *testing.T) {
	eng, store, api := newTestEngine(t)
	ctx := context.Background()

	if err := eng.UpdateTaskStatus(ctx, 10, domain.StatusChange{Status: domain.StatusArrived}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.CompleteTask(ctx, 10, domain.PODBundle{Signature: "R. Alvarez"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.UpdateTaskStatus(ctx, 11, domain.StatusChange{Status: domain.StatusEnRoute}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{}
	for _, a := range eng.Queue() {
		want = append(want, a.ID)
	}

	// a fresh engine hydrated from the same store sees the same queue order
	restored := New(store, api)
	if err := restored.Hydrate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := restored.Queue()
	if len(got) != len(want) {
		t.Fatalf("restored queue length = %d, want %d", len(got), len(want))
	}
	for i, a := range got {
		if a.ID != want[i] {
			t.Fatalf("restored queue[%d] = %q, want %q", i, a.ID, want[i])
		}
	}
	if task := restored.Task(10); task.Status != domain.StatusCompleted {
		t.Fatalf("restored task 10 status = %s, want completed", task.Status)
	}
}

func TestPersistFailureRollsBackMutation(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	var sunk []error
	eng.sink = func(op string, err error) { sunk = append(sunk, err) }

	store.FailNext = fmt.Errorf("disk full")

	err := eng.UpdateTaskStatus(ctx, 10, domain.StatusChange{Status: domain.StatusArrived})
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}

	if task := eng.Task(10); task.Status != domain.StatusEnRoute {
		t.Fatalf("task status = %s, want en_route after rollback", task.Status)
	}
	if got := eng.QueueLen(); got != 0 {
		t.Fatalf("queue length = %d, want 0 after rollback", got)
	}
	if len(sunk) != 1 {
		t.Fatalf("error sink received %d errors, want 1", len(sunk))
	}
}

func seedDeadLetter(t *testing.T, eng *Engine) {
	t.Helper()

	eng.mu.Lock()
	eng.deadLetter = []*domain.OfflineAction{{
		ID:        "1773500000000-0000",
		Type:      domain.ActionUpdateStatus,
		Payload:   domain.StatusUpdatePayload{Task: 10, Status: domain.StatusArrived},
		Attempts:  1,
		LastError: "task api: rejected (status=422): scripted failure",
	}}
	eng.mu.Unlock()
}

func TestSinkCanReadEngineStateDuringRollback(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	// the sink contract allows reading engine state; a failing mutation
	// must not hold the lock across the sink call
	var seen []string
	eng.sink = func(op string, err error) {
		eng.QueueLen()
		eng.DeadLetter()
		seen = append(seen, op)
	}

	seedDeadLetter(t, eng)

	ops := []struct {
		name string
		run  func() error
	}{
		{"set_tasks", func() error { return eng.SetTasks(ctx, testTasks()) }},
		{"add_pod_photo", func() error { return eng.AddPodPhoto(ctx, 7, "file:///pod1.jpg") }},
		{"requeue_dead_letter", func() error { return eng.RequeueDeadLetter(ctx) }},
		{"clear_dead_letter", func() error { return eng.ClearDeadLetter(ctx) }},
	}
	for _, op := range ops {
		store.FailNext = fmt.Errorf("disk full")
		if err := op.run(); err == nil {
			t.Fatalf("%s: expected error when persistence fails", op.name)
		}
	}

	if len(seen) != len(ops) {
		t.Fatalf("sink invoked for %v, want all of %d failing ops", seen, len(ops))
	}
}

func TestRequeueDeadLetterKeepsErrorOnPersistFailure(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	eng.sink = func(string, error) {}
	seedDeadLetter(t, eng)

	store.FailNext = fmt.Errorf("disk full")
	if err := eng.RequeueDeadLetter(ctx); err == nil {
		t.Fatal("expected error when persistence fails")
	}

	dead := eng.DeadLetter()
	if len(dead) != 1 {
		t.Fatalf("dead letter length = %d, want 1 after rollback", len(dead))
	}
	if dead[0].LastError == "" {
		t.Fatal("rolled-back dead letter lost its recorded error")
	}
	if got := eng.QueueLen(); got != 0 {
		t.Fatalf("queue length = %d, want 0 after rollback", got)
	}
}

func TestSetTasksKeepsLocalStateForPendingActions(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	if err := eng.AddPodPhoto(ctx, 7, "file:///pod1.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := eng.CompleteTask(ctx, 7, domain.PODBundle{Signature: "Jon Doe"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the server has not seen the completion yet: its fetch is stale
	stale := []*domain.DeliveryTask{
		{ID: 7, OrderID: 70, Status: domain.StatusArrived},
		{ID: 12, OrderID: 120, Status: domain.StatusPending},
	}
	if err := eng.SetTasks(ctx, stale); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := eng.Task(7)
	if task.Status != domain.StatusCompleted {
		t.Fatalf("task 7 status = %s, want local completed to win", task.Status)
	}
	if task.PODSignature != "Jon Doe" || len(task.PODPhotos) != 1 {
		t.Fatalf("task 7 lost POD fields: %+v", task)
	}
	if eng.Task(12) == nil {
		t.Fatal("new server task 12 was dropped")
	}
	if eng.Task(10) != nil {
		t.Fatal("task 10 should be gone after authoritative replace")
	}
}

func TestSetTasksDeduplicatesById(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	list := []*domain.DeliveryTask{
		{ID: 1, OrderNumber: "first", Status: domain.StatusPending},
		{ID: 1, OrderNumber: "dup", Status: domain.StatusPending},
	}
	if err := eng.SetTasks(ctx, list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tasks := eng.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("task count = %d, want 1", len(tasks))
	}
	if tasks[0].OrderNumber != "first" {
		t.Fatalf("kept %q, want first occurrence", tasks[0].OrderNumber)
	}
}

func TestHydrateRejectsUnknownSchemaVersion(t *testing.T) {
	store := statestore.NewMemStateStore()
	ctx := context.Background()

	if err := store.Save(ctx, &domain.Snapshot{SchemaVersion: 99}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eng := New(store, remote.NewMockTaskAPI())
	if err := eng.Hydrate(ctx); err == nil {
		t.Fatal("expected error for unknown schema version")
	}
}
