package tui

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// MockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type MockSyncOrchestrator struct {
	mu     sync.Mutex
	status driving.SyncStatus
	err    error
	calls  []string
	params []domain.Params
	// failState is the state left behind by a successful call.
	failState domain.SyncState
}

func (m *MockSyncOrchestrator) record(name string, params domain.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	m.params = append(m.params, params)
	if m.failState != "" {
		m.status.State = m.failState
	}
	return m.err
}

func (m *MockSyncOrchestrator) Initiate(_ context.Context, params domain.Params) error {
	return m.record("initiate", params)
}

func (m *MockSyncOrchestrator) Pull(_ context.Context, params domain.Params) error {
	return m.record("pull", params)
}

func (m *MockSyncOrchestrator) Push(_ context.Context, params domain.Params) error {
	return m.record("push", params)
}

func (m *MockSyncOrchestrator) Persist(_ context.Context, _ []string, params domain.Params) error {
	return m.record("persist", params)
}

func (m *MockSyncOrchestrator) State() domain.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.State
}

func (m *MockSyncOrchestrator) Status() driving.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MockSyncOrchestrator) Reset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.State.Failed() {
		return false
	}
	m.status.State = domain.StateIdle
	return true
}

func (m *MockSyncOrchestrator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockHistoryService implements driving.HistoryService for testing.
type MockHistoryService struct {
	runs []domain.RunSummary
	err  error
}

func (m *MockHistoryService) ListRuns(context.Context, int) ([]domain.RunSummary, error) {
	return m.runs, m.err
}

func (m *MockHistoryService) GetRun(context.Context, string) (*domain.RunSummary, error) {
	return nil, domain.ErrNotFound
}

func (m *MockHistoryService) TaskHistory(context.Context, int) ([]domain.TaskResult, error) {
	return nil, m.err
}

var (
	_ driving.SyncOrchestrator = (*MockSyncOrchestrator)(nil)
	_ driving.HistoryService   = (*MockHistoryService)(nil)
)

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name  string
		ports *Ports
		want  error
	}{
		{"nil ports", nil, ErrInvalidPorts},
		{"missing sync", &Ports{History: &MockHistoryService{}}, ErrMissingSyncOrchestrator},
		{"sync only", &Ports{Sync: &MockSyncOrchestrator{}}, nil},
		{"all", &Ports{Sync: &MockSyncOrchestrator{}, History: &MockHistoryService{}, Events: make(chan domain.Event)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestErrors_AreDistinct(t *testing.T) {
	assert.NotEqual(t, ErrMissingSyncOrchestrator.Error(), ErrInvalidPorts.Error())
	assert.Contains(t, ErrMissingSyncOrchestrator.Error(), "sync orchestrator")
	assert.Contains(t, ErrInvalidPorts.Error(), "invalid ports")
}
