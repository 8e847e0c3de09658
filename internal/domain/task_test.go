package domain

import (
	"errors"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	all := []TaskStatus{StatusPending, StatusEnRoute, StatusArrived, StatusCompleted, StatusFailed}

	allowed := map[TaskStatus]map[TaskStatus]bool{
		StatusPending: {StatusEnRoute: true, StatusFailed: true},
		StatusEnRoute: {StatusArrived: true, StatusFailed: true},
		StatusArrived: {StatusCompleted: true, StatusFailed: true},
	}

	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			want := allowed[from][to]
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %t, want %t", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesRejectAllEdges(t *testing.T) {
	task := &DeliveryTask{ID: 3, Status: StatusCompleted}

	err := task.Transition(StatusEnRoute)
	if err == nil {
		t.Fatal("expected error for completed -> en_route")
	}

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if invalid.From != StatusCompleted || invalid.To != StatusEnRoute {
		t.Fatalf("unexpected edge in error: %s -> %s", invalid.From, invalid.To)
	}
	if task.Status != StatusCompleted {
		t.Fatalf("task status changed to %s on rejected transition", task.Status)
	}

	failed := &DeliveryTask{ID: 4, Status: StatusFailed}
	if err := failed.Transition(StatusPending); err == nil {
		t.Fatal("expected error for failed -> pending")
	}
}

func TestTransitionAppliesAllowedEdge(t *testing.T) {
	task := &DeliveryTask{ID: 1, Status: StatusPending}

	if err := task.Transition(StatusEnRoute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != StatusEnRoute {
		t.Fatalf("status = %s, want %s", task.Status, StatusEnRoute)
	}
}

func TestCloneDoesNotShareState(t *testing.T) {
	task := &DeliveryTask{
		ID:        1,
		Status:    StatusArrived,
		PODPhotos: []string{"file:///a.jpg"},
	}

	cp := task.Clone()
	cp.PODPhotos = append(cp.PODPhotos, "file:///b.jpg")
	cp.Status = StatusCompleted

	if len(task.PODPhotos) != 1 {
		t.Fatalf("clone mutated original photos: %v", task.PODPhotos)
	}
	if task.Status != StatusArrived {
		t.Fatalf("clone mutated original status: %s", task.Status)
	}
}
