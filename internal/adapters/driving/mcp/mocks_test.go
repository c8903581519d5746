package mcp

import (
	"context"
	"sync"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// mockSyncOrchestrator is a mock implementation of driving.SyncOrchestrator.
type mockSyncOrchestrator struct {
	mu       sync.Mutex
	status   driving.SyncStatus
	err      error
	calls    []string
	params   []domain.Params
	locators []string
	resets   int
}

func (m *mockSyncOrchestrator) record(call string, params domain.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	m.params = append(m.params, params)
	return m.err
}

func (m *mockSyncOrchestrator) Initiate(_ context.Context, params domain.Params) error {
	return m.record("initiate", params)
}

func (m *mockSyncOrchestrator) Pull(_ context.Context, params domain.Params) error {
	return m.record("pull", params)
}

func (m *mockSyncOrchestrator) Push(_ context.Context, params domain.Params) error {
	return m.record("push", params)
}

func (m *mockSyncOrchestrator) Persist(_ context.Context, locators []string, params domain.Params) error {
	m.mu.Lock()
	m.locators = locators
	m.mu.Unlock()
	return m.record("persist", params)
}

func (m *mockSyncOrchestrator) State() domain.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State == "" {
		return domain.StateIdle
	}
	return m.status.State
}

func (m *mockSyncOrchestrator) Status() driving.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	if st.State == "" {
		st.State = domain.StateIdle
	}
	return st
}

func (m *mockSyncOrchestrator) Reset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.State.Failed() {
		return false
	}
	m.resets++
	m.status.State = domain.StateIdle
	return true
}

func (m *mockSyncOrchestrator) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	runs    []domain.RunSummary
	run     *domain.RunSummary
	results []domain.TaskResult
	err     error
	limit   int
}

func (m *mockHistoryService) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	m.limit = limit
	return m.runs, m.err
}

func (m *mockHistoryService) GetRun(_ context.Context, _ string) (*domain.RunSummary, error) {
	if m.run == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.run, m.err
}

func (m *mockHistoryService) TaskHistory(_ context.Context, _ int) ([]domain.TaskResult, error) {
	return m.results, m.err
}
