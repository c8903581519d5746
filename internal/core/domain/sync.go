package domain

import (
	"fmt"
	"strings"
	"time"
)

// SyncState is the current phase of an orchestrator instance.
type SyncState string

// Orchestrator states. IDLE is both the initial state and the end of every run.
const (
	StateIdle                SyncState = "IDLE"
	StatePulling             SyncState = "PULLING"
	StatePullingFetchingData SyncState = "PULLING_FETCHING_DATA"
	StatePersisting          SyncState = "PERSISTING"
	StatePushing             SyncState = "PUSHING"
	StatePullFailed          SyncState = "PULL_FAILED"
	StatePushFailed          SyncState = "PUSH_FAILED"
	StatePersistingFailed    SyncState = "PERSISTING_FAILED"
)

// Failed reports whether the state is one of the sticky failure states.
func (s SyncState) Failed() bool {
	return s == StatePullFailed || s == StatePushFailed || s == StatePersistingFailed
}

// Phase is a unit of work the orchestrator can run.
type Phase string

const (
	PhasePull    Phase = "PULL"
	PhasePersist Phase = "PERSIST"
	PhasePush    Phase = "PUSH"
)

// RunningState returns the state the orchestrator is in while the phase runs.
func (p Phase) RunningState() SyncState {
	switch p {
	case PhasePull:
		return StatePulling
	case PhasePersist:
		return StatePersisting
	default:
		return StatePushing
	}
}

// FailedState returns the state the orchestrator is left in when the phase fails.
func (p Phase) FailedState() SyncState {
	switch p {
	case PhasePull:
		return StatePullFailed
	case PhasePersist:
		return StatePersistingFailed
	default:
		return StatePushFailed
	}
}

// SyncPriority is the configured ordering of phases for a run.
type SyncPriority string

// Supported priorities.
const (
	PriorityPull            SyncPriority = "PULL"
	PriorityPush            SyncPriority = "PUSH"
	PriorityPushPull        SyncPriority = "PUSH_PULL"
	PriorityPullPush        SyncPriority = "PULL_PUSH"
	PriorityPullPersist     SyncPriority = "PULL_PERSIST"
	PriorityPullPushPersist SyncPriority = "PULL_PUSH_PERSIST"
	PriorityPullPersistPush SyncPriority = "PULL_PERSIST_PUSH"
	PriorityPushPullPersist SyncPriority = "PUSH_PULL_PERSIST"
)

// DefaultPriority is used when no priority is configured.
const DefaultPriority = PriorityPullPersistPush

var priorityPlans = map[SyncPriority]Plan{
	PriorityPull:            {PhasePull},
	PriorityPush:            {PhasePush},
	PriorityPushPull:        {PhasePush, PhasePull},
	PriorityPullPush:        {PhasePull, PhasePush},
	PriorityPullPersist:     {PhasePull, PhasePersist},
	PriorityPullPushPersist: {PhasePull, PhasePush, PhasePersist},
	PriorityPullPersistPush: {PhasePull, PhasePersist, PhasePush},
	PriorityPushPullPersist: {PhasePush, PhasePull, PhasePersist},
}

// Priorities returns every supported priority.
func Priorities() []SyncPriority {
	return []SyncPriority{
		PriorityPull, PriorityPush, PriorityPushPull, PriorityPullPush,
		PriorityPullPersist, PriorityPullPushPersist, PriorityPullPersistPush,
		PriorityPushPullPersist,
	}
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (SyncPriority, error) {
	p := SyncPriority(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := priorityPlans[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
	return p, nil
}

// Valid reports whether the priority is supported.
func (p SyncPriority) Valid() bool {
	_, ok := priorityPlans[p]
	return ok
}

// Plan returns the ordered phases the priority runs.
func (p SyncPriority) Plan() Plan {
	plan := priorityPlans[p]
	out := make(Plan, len(plan))
	copy(out, plan)
	return out
}

// Plan is an ordered list of phases.
type Plan []Phase

// Index returns the position of phase in the plan, or -1.
func (pl Plan) Index(phase Phase) int {
	for i, p := range pl {
		if p == phase {
			return i
		}
	}
	return -1
}

// From returns the plan starting at phase. A phase absent from the plan
// runs on its own.
func (pl Plan) From(phase Phase) Plan {
	i := pl.Index(phase)
	if i < 0 {
		return Plan{phase}
	}
	out := make(Plan, len(pl)-i)
	copy(out, pl[i:])
	return out
}

// Last returns the final phase of the plan.
func (pl Plan) Last() Phase {
	if len(pl) == 0 {
		return ""
	}
	return pl[len(pl)-1]
}

// HasAfter reports whether target appears after phase in the plan.
func (pl Plan) HasAfter(phase, target Phase) bool {
	i := pl.Index(phase)
	if i < 0 {
		return false
	}
	for _, p := range pl[i+1:] {
		if p == target {
			return true
		}
	}
	return false
}

// Next returns the phase following phase, if any.
func (pl Plan) Next(phase Phase) (Phase, bool) {
	i := pl.Index(phase)
	if i < 0 || i+1 >= len(pl) {
		return "", false
	}
	return pl[i+1], true
}

// RunSummary describes a finished (or aborted) run.
type RunSummary struct {
	// RunID uniquely identifies the run.
	RunID string

	// Priority is the configured ordering of the instance.
	Priority SyncPriority

	// Phases are the phases the run executed, in order.
	Phases []Phase

	// FailedPhases lists phases whose failure was swallowed by the policy.
	FailedPhases []Phase

	// RecordsWritten counts records written to the local store.
	RecordsWritten int

	// RecordsPushed counts records uploaded to the middle store.
	RecordsPushed int

	// BatchesUploaded counts numbered batches uploaded (the terminator excluded).
	BatchesUploaded int

	// StartedAt is when the run started.
	StartedAt time.Time

	// EndedAt is when the run reached IDLE or a failure state.
	EndedAt time.Time

	// FinalState is the state the instance was left in.
	FinalState SyncState
}

// Items returns the total number of records moved by the run.
func (s *RunSummary) Items() int {
	return s.RecordsWritten + s.RecordsPushed
}
