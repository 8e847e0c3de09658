package remote

import (
	"context"
	"fmt"
	"sync"

	"fieldsync-agent/internal/domain"
	"fieldsync-agent/internal/ports"
)

// MockTaskAPI is a scripted TaskAPI for engine and handler tests. Calls are
// recorded in order as "type:taskID"; Fail maps an idempotency key to the
// error its replay should return. Block, when set, makes every call wait
// until the channel is closed (for single-flight tests).
type MockTaskAPI struct {
	mu    sync.Mutex
	Calls []string
	Keys  []string
	Fail  map[string]error
	Tasks []*domain.DeliveryTask
	Block chan struct{}
}

func NewMockTaskAPI() *MockTaskAPI {
	return &MockTaskAPI{Fail: make(map[string]error)}
}

// FailWith scripts the call carrying the given idempotency key to fail.
func (m *MockTaskAPI) FailWith(key string, kind ports.ErrorKind, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail[key] = &ports.APIError{Kind: kind, Status: status, Message: "scripted failure"}
}

func (m *MockTaskAPI) record(typ domain.ActionType, key string, taskID int) error {
	if m.Block != nil {
		<-m.Block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, fmt.Sprintf("%s:%d", typ, taskID))
	m.Keys = append(m.Keys, key)
	if err := m.Fail[key]; err != nil {
		return err
	}
	return nil
}

// CallLog returns the recorded calls in order.
func (m *MockTaskAPI) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockTaskAPI) FetchTasks(context.Context) ([]*domain.DeliveryTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Tasks, nil
}

func (m *MockTaskAPI) UpdateStatus(_ context.Context, key string, p domain.StatusUpdatePayload) error {
	return m.record(domain.ActionUpdateStatus, key, p.Task)
}

func (m *MockTaskAPI) UploadPOD(_ context.Context, key string, p domain.PODUploadPayload) error {
	return m.record(domain.ActionUploadPOD, key, p.Task)
}

func (m *MockTaskAPI) SignECMR(_ context.Context, key string, p domain.ECMRSignPayload) error {
	return m.record(domain.ActionSignECMR, key, p.Task)
}

func (m *MockTaskAPI) UpdateLocation(_ context.Context, key string, p domain.LocationUpdatePayload) error {
	return m.record(domain.ActionUpdateLocation, key, p.Task)
}
