package domain

import (
	"context"
	"fmt"
	"time"
)

// SyncEvent names a lifecycle notification.
type SyncEvent string

// Orchestrator events.
const (
	EventSyncAborted    SyncEvent = "SYNC_ABORTED"
	EventPullAborted    SyncEvent = "PULL_ABORTED"
	EventPushAborted    SyncEvent = "PUSH_ABORTED"
	EventPersistAborted SyncEvent = "PERSIST_ABORTED"

	EventStartingPull       SyncEvent = "STARTING_PULL"
	EventStartingPush       SyncEvent = "STARTING_PUSH"
	EventStartingPersisting SyncEvent = "STARTING_PERSISTING"

	EventPullFoundDataCompleted SyncEvent = "PULL_FOUND_DATA_COMPLETED"
	EventPullWriteDataCompleted SyncEvent = "PULL_WRITE_DATA_COMPLETED"
	EventPullNoData             SyncEvent = "PULL_NO_DATA"
	EventSyncPullCompleted      SyncEvent = "SYNC_PULL_COMPLETED"
	EventSyncPersistCompleted   SyncEvent = "SYNC_PERSIST_COMPLETED"
	EventSyncPushCompleted      SyncEvent = "SYNC_PUSH_COMPLETED"
	EventSyncCompleted          SyncEvent = "SYNC_COMPLETED"
	EventSyncFailed             SyncEvent = "SYNC_FAILED"

	EventPullFailed       SyncEvent = "PULL_FAILED"
	EventPushFailed       SyncEvent = "PUSH_FAILED"
	EventPersistingFailed SyncEvent = "PERSISTING_FAILED"
	EventCleanupFailed    SyncEvent = "CLEANUP_FAILED"

	EventNoRecordMapping     SyncEvent = "NO_RECORD_MAPPING"
	EventBatchUploaded       SyncEvent = "BATCH_UPLOADED"
	EventTerminatorUploaded  SyncEvent = "TERMINATOR_UPLOADED"
	EventUnknownWaitStrategy SyncEvent = "UNKNOWN_WAIT_STRATEGY"

	EventWaitStarting SyncEvent = "WAIT_EVENT_STARTING"
	EventWaitNewPoll  SyncEvent = "WAIT_EVENT_NEW_POLL"
	EventWaitSuccess  SyncEvent = "WAIT_EVENT_SUCCESS"
	EventWaitFailed   SyncEvent = "WAIT_EVENT_FAILED"
	EventWaitEnded    SyncEvent = "WAIT_EVENT_ENDED"
)

// Event is a lifecycle notification emitted by the orchestrator.
type Event struct {
	// Name identifies the event.
	Name SyncEvent

	// Message is a human-readable description.
	Message string

	// Err is set for failure events.
	Err error

	// Params are the per-call parameters of the phase that emitted the event.
	Params Params

	// RunID identifies the run the event belongs to.
	RunID string

	// Model is set for record-level events.
	Model string

	// Attempt and Interval are set for wait events.
	Attempt  int
	Interval time.Duration

	// Time is when the event was emitted.
	Time time.Time
}

// String renders the event as a single progress line.
func (e Event) String() string {
	line := string(e.Name)
	switch {
	case e.Name == EventWaitNewPoll:
		line = fmt.Sprintf("%s attempt %d (waited %s)", line, e.Attempt, e.Interval)
	case e.Model != "":
		line = fmt.Sprintf("%s [%s]", line, e.Model)
	}
	if e.Message != "" {
		line += ": " + e.Message
	}
	if e.Err != nil {
		line += " (" + e.Err.Error() + ")"
	}
	return line
}

// EventListener receives lifecycle events. It must not block for long:
// it runs on the orchestrator's goroutine.
type EventListener func(ctx context.Context, event Event)

// Decision is a failure policy's verdict on a failure event.
type Decision int

const (
	// Abort re-raises the failure.
	Abort Decision = iota
	// Continue swallows the failure and lets the run proceed.
	Continue
)

// String returns the decision name.
func (d Decision) String() string {
	if d == Continue {
		return "CONTINUE"
	}
	return "ABORT"
}

// FailurePolicy decides whether a failure event aborts the run.
type FailurePolicy func(event Event) Decision

// FailFast aborts on every failure.
func FailFast(Event) Decision { return Abort }

// Resilient continues past every failure.
func Resilient(Event) Decision { return Continue }
