package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/config/file"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

func TestSyncCmd_RunsPlan(t *testing.T) {
	orch := newIdleSync()
	orch.lastRun = &domain.RunSummary{
		RunID:           "run-1",
		FinalState:      domain.StateIdle,
		RecordsWritten:  3,
		RecordsPushed:   250,
		BatchesUploaded: 3,
	}
	setupCLI(t, orch, nil)

	out, err := execute(t, "sync")

	require.NoError(t, err)
	assert.Equal(t, []string{"initiate"}, orch.calls)
	assert.Nil(t, orch.params[0])
	assert.Contains(t, out, "Starting PULL_PUSH...")
	assert.Contains(t, out, "Sync completed (run run-1, state IDLE)")
	assert.Contains(t, out, "Records pushed:  250 in 3 batch(es)")
}

func TestSyncCmd_Phase(t *testing.T) {
	tests := []struct {
		phase string
		call  string
	}{
		{"pull", "pull"},
		{"PUSH", "push"},
		{" Pull ", "pull"},
	}
	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			orch := newIdleSync()
			setupCLI(t, orch, nil)

			_, err := execute(t, "sync", "--phase", tt.phase)

			require.NoError(t, err)
			assert.Equal(t, []string{tt.call}, orch.calls)
		})
	}
}

func TestSyncCmd_PhasePersistRejected(t *testing.T) {
	orch := newIdleSync()
	setupCLI(t, orch, nil)

	_, err := execute(t, "sync", "--phase", "persist")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "persist <locator>")
	assert.Empty(t, orch.calls)
}

func TestSyncCmd_UnknownPhase(t *testing.T) {
	setupCLI(t, newIdleSync(), nil)

	_, err := execute(t, "sync", "--phase", "merge")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), `"merge"`)
}

func TestSyncCmd_Folder(t *testing.T) {
	orch := newIdleSync()
	setupCLI(t, orch, nil)

	_, err := execute(t, "pull", "--folder", "exports/today")

	require.NoError(t, err)
	assert.Equal(t, []string{"pull"}, orch.calls)
	assert.Equal(t, domain.Params{domain.ParamFolder: "exports/today"}, orch.params[0])
}

func TestPushCmd(t *testing.T) {
	orch := newIdleSync()
	setupCLI(t, orch, nil)

	out, err := execute(t, "push")

	require.NoError(t, err)
	assert.Equal(t, []string{"push"}, orch.calls)
	assert.Contains(t, out, "Starting PUSH...")
	assert.Contains(t, out, "Sync completed.")
}

func TestPersistCmd(t *testing.T) {
	orch := newIdleSync()
	setupCLI(t, orch, nil)

	_, err := execute(t, "persist", "inbound/1.json", "inbound/2.json")

	require.NoError(t, err)
	assert.Equal(t, []string{"persist"}, orch.calls)
	assert.Equal(t, []string{"inbound/1.json", "inbound/2.json"}, orch.locators)
}

func TestPersistCmd_NeedsLocator(t *testing.T) {
	orch := newIdleSync()
	setupCLI(t, orch, nil)

	_, err := execute(t, "persist")

	assert.Error(t, err)
	assert.Empty(t, orch.calls)
}

func TestSyncCmd_OrchestratorError(t *testing.T) {
	orch := newIdleSync()
	orch.err = domain.ErrSyncInProgress
	setupCLI(t, orch, nil)

	_, err := execute(t, "sync")

	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Contains(t, err.Error(), "sync failed")
}

func TestSyncCmd_FailedState(t *testing.T) {
	orch := newIdleSync()
	orch.after = domain.StatePushFailed
	setupCLI(t, orch, nil)

	_, err := execute(t, "push")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUSH_FAILED")
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	setupCLI(t, nil, nil)
	bootstrap = func(context.Context, *file.Config, string) (*App, error) {
		return nil, nil
	}

	_, err := execute(t, "sync")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync service not configured")
}

func TestSyncCmd_BootstrapError(t *testing.T) {
	setupCLI(t, nil, nil)
	bootstrap = func(context.Context, *file.Config, string) (*App, error) {
		return nil, errors.New("open state store: disk full")
	}

	_, err := execute(t, "sync")

	assert.EqualError(t, err, "open state store: disk full")
}

func TestSyncCmd_BootstrapGetsConfigDir(t *testing.T) {
	path := setupCLI(t, nil, nil)
	var gotDir string
	var gotCfg *file.Config
	bootstrap = func(_ context.Context, cfg *file.Config, dir string) (*App, error) {
		gotDir, gotCfg = dir, cfg
		return &App{}, nil
	}

	_, err := execute(t, "sync")

	assert.ErrorContains(t, err, "sync service not configured")
	assert.Equal(t, filepath.Dir(path), gotDir)
	require.NotNil(t, gotCfg)
	assert.Equal(t, string(domain.DefaultPriority), gotCfg.Sync.Priority)
}

func TestSyncCmd_InvalidConfig(t *testing.T) {
	path := setupCLI(t, nil, nil)
	cfg := file.Default()
	cfg.Sync.Priority = "SIDEWAYS"
	require.NoError(t, cfg.Save(path))

	_, err := execute(t, "sync")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStatusCmd_LastRunFromHistory(t *testing.T) {
	started := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	history := &mockHistoryService{runs: []domain.RunSummary{{
		RunID:          "run-7",
		Phases:         []domain.Phase{domain.PhasePull, domain.PhasePush},
		RecordsWritten: 4,
		RecordsPushed:  9,
		StartedAt:      started,
		FinalState:     domain.StateIdle,
	}}}
	setupCLI(t, newIdleSync(), history)

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Equal(t, 1, history.limit)
	assert.Contains(t, out, "Priority: PULL_PUSH (PULL -> PUSH)")
	assert.Contains(t, out, "State:    IDLE")
	assert.Contains(t, out, "Last run: run-7 at 2026-05-04 03:02:01")
	assert.Contains(t, out, "Phases:      PULL -> PUSH")
	assert.Contains(t, out, "Written 4, pushed 9")
}

func TestStatusCmd_NoRuns(t *testing.T) {
	setupCLI(t, newIdleSync(), &mockHistoryService{})

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Last run: none")
}

func TestStatusCmd_HistoryError(t *testing.T) {
	setupCLI(t, newIdleSync(), &mockHistoryService{err: errors.New("locked")})

	_, err := execute(t, "status")

	assert.ErrorContains(t, err, "locked")
}

func TestJoinPhases(t *testing.T) {
	assert.Equal(t, "", joinPhases(nil))
	assert.Equal(t, "PULL -> PERSIST", joinPhases([]domain.Phase{domain.PhasePull, domain.PhasePersist}))
}
