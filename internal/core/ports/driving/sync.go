package driving

import (
	"context"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// SyncOrchestrator runs the phases of a synchronisation between the local
// store and the middle store.
//
// Phase-starting calls on a busy instance return domain.ErrSyncInProgress;
// they are never queued.
type SyncOrchestrator interface {
	// Initiate runs the configured priority from its first phase.
	Initiate(ctx context.Context, params domain.Params) error

	// Pull waits for a remote export and writes or carries it forward,
	// then continues with the rest of the plan.
	Pull(ctx context.Context, params domain.Params) error

	// Push exports every local record to the middle store,
	// then continues with the rest of the plan.
	Push(ctx context.Context, params domain.Params) error

	// Persist loads the given locators and writes their records locally,
	// then continues with the rest of the plan.
	Persist(ctx context.Context, locators []string, params domain.Params) error

	// State returns the current orchestrator state.
	State() domain.SyncState

	// Status returns a snapshot of the orchestrator.
	Status() SyncStatus

	// Reset returns a failed instance to IDLE and reports whether it did.
	// Idle and running instances are left untouched.
	Reset() bool
}

// SyncStatus represents the current state of an orchestrator.
type SyncStatus struct {
	// State is the current state.
	State domain.SyncState

	// Priority is the configured ordering.
	Priority domain.SyncPriority

	// Pending is the number of phase steps not yet reported complete.
	Pending int

	// Running indicates if a run is currently in progress.
	Running bool

	// LastRun is the most recent finished run, if any.
	LastRun *domain.RunSummary
}
