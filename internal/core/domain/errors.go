package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown adapter kind in configuration.
	ErrUnsupportedType = errors.New("unsupported type")

	// Sync Errors.

	// ErrSyncInProgress indicates the orchestrator is not idle.
	// Phase-starting calls are rejected, never queued.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrSyncFailed indicates a phase failed and the failure policy aborted the run.
	ErrSyncFailed = errors.New("sync failed")

	// ErrMissingOption indicates a required orchestrator option was not provided.
	ErrMissingOption = errors.New("missing required option")

	// ErrMissingPulledData indicates a persist phase was scheduled after push
	// but no pull result was carried over.
	ErrMissingPulledData = errors.New("no pulled data carried over to persist")

	// ErrNoRecordMapping indicates a decoded record names a model that is not
	// in the record table map.
	ErrNoRecordMapping = errors.New("no record mapping")

	// ErrUnknownPriority indicates an unrecognised sync priority.
	ErrUnknownPriority = errors.New("unknown sync priority")

	// ErrUnknownWaitStrategy indicates an unrecognised wait strategy.
	ErrUnknownWaitStrategy = errors.New("unknown wait strategy")
)
