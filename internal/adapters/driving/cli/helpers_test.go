package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/config/file"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	mu       sync.Mutex
	status   driving.SyncStatus
	err      error
	calls    []string
	params   []domain.Params
	locators []string
	// after is the state left behind by a phase call.
	after domain.SyncState
	// lastRun is recorded as Status().LastRun by a phase call.
	lastRun *domain.RunSummary
}

func (m *mockSyncOrchestrator) record(name string, params domain.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	m.params = append(m.params, params)
	if m.after != "" {
		m.status.State = m.after
	}
	if m.lastRun != nil {
		m.status.LastRun = m.lastRun
	}
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
	return m.status.State
}

func (m *mockSyncOrchestrator) Status() driving.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockSyncOrchestrator) Reset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.State.Failed() {
		return false
	}
	m.status.State = domain.StateIdle
	return true
}

// mockHistoryService implements driving.HistoryService for testing.
type mockHistoryService struct {
	runs    []domain.RunSummary
	results []domain.TaskResult
	err     error
	limit   int
}

func (m *mockHistoryService) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	m.limit = limit
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], m.err
	}
	return m.runs, m.err
}

func (m *mockHistoryService) GetRun(context.Context, string) (*domain.RunSummary, error) {
	return nil, domain.ErrNotFound
}

func (m *mockHistoryService) TaskHistory(_ context.Context, limit int) ([]domain.TaskResult, error) {
	m.limit = limit
	return m.results, m.err
}

func newIdleSync() *mockSyncOrchestrator {
	return &mockSyncOrchestrator{status: driving.SyncStatus{
		State:    domain.StateIdle,
		Priority: domain.PriorityPullPush,
	}}
}

// setupCLI resets the command globals, points --config at a temporary
// directory and injects the given services. Everything is restored when the
// test ends.
func setupCLI(t *testing.T, orch driving.SyncOrchestrator, history driving.HistoryService) string {
	t.Helper()

	oldSync, oldHistory, oldScheduler := syncOrchestrator, historyService, scheduler
	oldConfig, oldClose, oldBootstrap := appConfig, closeApp, bootstrap
	t.Cleanup(func() {
		syncOrchestrator, historyService, scheduler = oldSync, oldHistory, oldScheduler
		appConfig, closeApp, bootstrap = oldConfig, oldClose, oldBootstrap
		configPath = ""
	})

	syncOrchestrator = orch
	historyService = history
	scheduler = nil
	appConfig = nil
	closeApp = nil

	syncPhase, syncFolder = "", ""
	historyLimit, historyTasks = 10, false
	configForce = false
	versionShort = false

	path := filepath.Join(t.TempDir(), file.FileName)
	configPath = path
	return path
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
