package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOptions configures one orchestrator instance. It is not modified after
// NewSyncOrchestrator returns.
type SyncOptions struct {
	// ORM reads and writes the local store. Required.
	ORM driven.ORM

	// Format encodes and decodes batch payloads. Required.
	Format driven.Format

	// MiddleStore is the shared remote storage. Required.
	MiddleStore driven.MiddleStore

	// RecordTableMap defines every model the instance synchronises. Required.
	RecordTableMap domain.RecordTableMap

	// WaitStrategy selects the readiness detection used by pull.
	// Polling is built in; other strategies need Waiter.
	WaitStrategy domain.WaitStrategy

	// Waiter overrides the built-in poller.
	Waiter driven.Waiter

	// Polling configures the built-in poller.
	Polling domain.PollingOption

	// Priority is the ordering of phases a run executes.
	Priority domain.SyncPriority

	// MaxRecordsPerUpload is the batch size of a push.
	MaxRecordsPerUpload int

	// PushDestination is the prefix batches and the terminator are uploaded under.
	PushDestination string

	// Resilient selects domain.Resilient when Policy is nil.
	Resilient bool

	// Policy decides whether failure events abort the run.
	Policy domain.FailurePolicy

	// Listener receives every lifecycle event.
	Listener domain.EventListener

	// RunStore records finished runs. Optional.
	RunStore driven.RunStore
}

// BuildDefaultOptions fills unset options with their defaults and checks that
// the required collaborators are present.
func BuildDefaultOptions(opts SyncOptions) (SyncOptions, error) {
	if opts.Priority == "" {
		opts.Priority = domain.DefaultPriority
	}
	if opts.WaitStrategy == "" {
		opts.WaitStrategy = domain.WaitPolling
	}
	if opts.Polling == (domain.PollingOption{}) {
		opts.Polling = domain.DefaultPollingOption()
	}
	if opts.MaxRecordsPerUpload == 0 {
		opts.MaxRecordsPerUpload = DefaultMaxRecordsPerUpload
	}
	if opts.Policy == nil {
		if opts.Resilient {
			opts.Policy = domain.Resilient
		} else {
			opts.Policy = domain.FailFast
		}
	}
	return opts, opts.Validate()
}

// Validate checks the options.
func (o SyncOptions) Validate() error {
	switch {
	case o.ORM == nil:
		return fmt.Errorf("%w: orm", domain.ErrMissingOption)
	case o.Format == nil:
		return fmt.Errorf("%w: format", domain.ErrMissingOption)
	case o.MiddleStore == nil:
		return fmt.Errorf("%w: middle store", domain.ErrMissingOption)
	case o.RecordTableMap == nil:
		return fmt.Errorf("%w: record table map", domain.ErrMissingOption)
	}
	if !o.Priority.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPriority, o.Priority)
	}
	if o.MaxRecordsPerUpload <= 0 {
		return fmt.Errorf("%w: max records per upload must be positive", domain.ErrInvalidInput)
	}
	if o.Waiter == nil && o.WaitStrategy == domain.WaitPolling {
		if err := o.Polling.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// runContext carries the state of one run between chained phases.
type runContext struct {
	id     string
	params domain.Params
	plan   domain.Plan

	// pulled holds the locators found by pull for a later persist.
	pulled    []string
	hasPulled bool

	// deferCleanup postpones the pull cleanup until persist completes.
	deferCleanup bool

	summary *domain.RunSummary
}

// SyncOrchestrator sequences the pull, persist and push phases of a run
// according to the configured priority.
type SyncOrchestrator struct {
	opts    SyncOptions
	plan    domain.Plan
	waiter  driven.Waiter
	router  *Router
	batcher *Batcher
	now     func() time.Time

	// Status tracking
	mu      sync.Mutex
	state   domain.SyncState
	pending int
	lastRun *domain.RunSummary
}

// NewSyncOrchestrator creates an orchestrator from options completed by
// BuildDefaultOptions.
func NewSyncOrchestrator(opts SyncOptions) (*SyncOrchestrator, error) {
	opts, err := BuildDefaultOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("sync options: %w", err)
	}

	waiter := opts.Waiter
	if waiter == nil && opts.WaitStrategy == domain.WaitPolling {
		waiter = NewPoller(opts.Polling)
	}

	return &SyncOrchestrator{
		opts:   opts,
		plan:   opts.Priority.Plan(),
		waiter: waiter,
		router: NewRouter(opts.ORM, opts.RecordTableMap),
		batcher: NewBatcher(opts.ORM, opts.Format, opts.MiddleStore, opts.RecordTableMap,
			opts.MaxRecordsPerUpload, opts.PushDestination),
		now:   time.Now,
		state: domain.StateIdle,
	}, nil
}

// Initiate runs the configured priority from its first phase.
func (o *SyncOrchestrator) Initiate(ctx context.Context, params domain.Params) error {
	return o.start(ctx, o.plan, domain.EventSyncAborted, params, nil)
}

// Pull runs the plan from the pull phase.
func (o *SyncOrchestrator) Pull(ctx context.Context, params domain.Params) error {
	return o.start(ctx, o.plan.From(domain.PhasePull), domain.EventPullAborted, params, nil)
}

// Push runs the plan from the push phase.
func (o *SyncOrchestrator) Push(ctx context.Context, params domain.Params) error {
	return o.start(ctx, o.plan.From(domain.PhasePush), domain.EventPushAborted, params, nil)
}

// Persist writes the records behind locators and runs the rest of the plan.
func (o *SyncOrchestrator) Persist(ctx context.Context, locators []string, params domain.Params) error {
	return o.start(ctx, o.plan.From(domain.PhasePersist), domain.EventPersistAborted, params, func(rc *runContext) {
		rc.pulled = locators
		rc.hasPulled = true
	})
}

// State returns the current state.
func (o *SyncOrchestrator) State() domain.SyncState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns a snapshot of the orchestrator.
func (o *SyncOrchestrator) Status() driving.SyncStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := driving.SyncStatus{
		State:    o.state,
		Priority: o.opts.Priority,
		Pending:  o.pending,
		Running:  o.state != domain.StateIdle && !o.state.Failed(),
	}
	if o.lastRun != nil {
		// Return a copy to avoid race conditions
		run := *o.lastRun
		status.LastRun = &run
	}
	return status
}

// Reset returns the instance to IDLE after a fail-fast abort. It is a no-op
// unless the instance is in a failed state.
func (o *SyncOrchestrator) Reset() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Failed() {
		return false
	}
	o.state = domain.StateIdle
	o.pending = 0
	return true
}

// start claims the instance for a run. Busy instances reject the call.
func (o *SyncOrchestrator) start(
	ctx context.Context,
	plan domain.Plan,
	abortEvent domain.SyncEvent,
	params domain.Params,
	seed func(*runContext),
) error {
	o.mu.Lock()
	if o.state != domain.StateIdle {
		state := o.state
		o.mu.Unlock()
		o.emit(ctx, domain.Event{
			Name:    abortEvent,
			Message: fmt.Sprintf("the sync instance is currently in the %s state", state),
			Err:     domain.ErrSyncInProgress,
			Params:  params,
		})
		return fmt.Errorf("%s: %w", strings.ToLower(string(abortEvent)), domain.ErrSyncInProgress)
	}
	o.state = plan[0].RunningState()
	o.mu.Unlock()

	rc := &runContext{
		id:     uuid.New().String(),
		params: params,
		plan:   plan,
		summary: &domain.RunSummary{
			Priority:  o.opts.Priority,
			StartedAt: o.now(),
		},
	}
	rc.summary.RunID = rc.id
	if seed != nil {
		seed(rc)
	}

	logger.Info("Starting sync run %s (%s)", rc.id, planString(plan))
	return o.run(ctx, rc)
}

// run executes the phases of the plan in order.
func (o *SyncOrchestrator) run(ctx context.Context, rc *runContext) error {
	for _, phase := range rc.plan {
		var err error
		switch phase {
		case domain.PhasePull:
			err = o.pull(ctx, rc)
		case domain.PhasePersist:
			err = o.persist(ctx, rc)
		case domain.PhasePush:
			err = o.push(ctx, rc)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// pull waits for a remote export, then writes it or carries it to persist.
func (o *SyncOrchestrator) pull(ctx context.Context, rc *runContext) error {
	o.begin(ctx, rc, domain.PhasePull, 2, domain.EventStartingPull, "starting the pull")

	// A pull that fails without data still counts as pulled for a persist
	// that runs after a swallowed failure.
	rc.hasPulled = true

	if o.waiter == nil {
		err := fmt.Errorf("%w: %s", domain.ErrUnknownWaitStrategy, o.opts.WaitStrategy)
		o.emit(ctx, o.event(rc, domain.EventUnknownWaitStrategy, "the specified wait strategy was not recognized", err))
		return o.fail(ctx, rc, domain.PhasePull, domain.EventPullFailed, err, 2)
	}

	locators, ready, err := o.waiter.Wait(ctx, o.opts.MiddleStore.WaitAction, o.waitListener(rc), rc.params)
	if err != nil {
		o.emit(ctx, o.event(rc, domain.EventWaitFailed, "wait failed", err))
		return o.fail(ctx, rc, domain.PhasePull, domain.EventPullFailed, fmt.Errorf("wait: %w", err), 2)
	}

	if !ready {
		o.report(ctx, rc, domain.PhasePull, domain.StatePullingFetchingData,
			o.event(rc, domain.EventPullNoData, "wait ended without finding data", nil))
		o.report(ctx, rc, domain.PhasePull, domain.StatePulling,
			o.event(rc, domain.EventSyncPullCompleted, "sync pull completed with no data", nil))
		return nil
	}

	o.emit(ctx, o.event(rc, domain.EventWaitSuccess, "wait successful, found data", nil))
	o.setState(domain.StatePullingFetchingData)
	o.report(ctx, rc, domain.PhasePull, domain.StatePullingFetchingData,
		o.event(rc, domain.EventPullFoundDataCompleted, "successfully confirmed remote record availability", nil))
	rc.pulled = locators

	if rc.plan.HasAfter(domain.PhasePull, domain.PhasePersist) {
		rc.deferCleanup = true
	} else {
		if err := o.loadPulledData(ctx, rc, locators); err != nil {
			return o.fail(ctx, rc, domain.PhasePull, domain.EventPullFailed, err, 1)
		}
		o.emit(ctx, o.event(rc, domain.EventPullWriteDataCompleted, "successfully wrote remote records", nil))
		if err := o.cleanup(ctx, rc, domain.CleanupPull); err != nil {
			return o.fail(ctx, rc, domain.PhasePull, domain.EventPullFailed, err, 1)
		}
	}

	o.report(ctx, rc, domain.PhasePull, domain.StatePulling,
		o.event(rc, domain.EventSyncPullCompleted, "sync pull completed successfully", nil))
	return nil
}

// persist writes the records behind the carried locators.
func (o *SyncOrchestrator) persist(ctx context.Context, rc *runContext) error {
	o.begin(ctx, rc, domain.PhasePersist, 1, domain.EventStartingPersisting, "starting the persisting")

	if !rc.hasPulled {
		return o.fail(ctx, rc, domain.PhasePersist, domain.EventPersistingFailed, domain.ErrMissingPulledData, 1)
	}
	if err := o.loadPulledData(ctx, rc, rc.pulled); err != nil {
		return o.fail(ctx, rc, domain.PhasePersist, domain.EventPersistingFailed, err, 1)
	}
	if rc.deferCleanup {
		rc.deferCleanup = false
		if err := o.cleanup(ctx, rc, domain.CleanupPull); err != nil {
			return o.fail(ctx, rc, domain.PhasePersist, domain.EventPersistingFailed, err, 1)
		}
	}

	o.report(ctx, rc, domain.PhasePersist, domain.StatePersisting,
		o.event(rc, domain.EventSyncPersistCompleted, "sync persist completed successfully", nil))
	return nil
}

// push exports every local record followed by the terminator.
func (o *SyncOrchestrator) push(ctx context.Context, rc *runContext) error {
	o.begin(ctx, rc, domain.PhasePush, 1, domain.EventStartingPush, "starting the push")

	result, err := o.batcher.Push(ctx, rc.params, func(ctx context.Context, event domain.Event) {
		event.RunID = rc.id
		o.emit(ctx, event)
	})
	if result != nil {
		rc.summary.RecordsPushed += result.Records
		rc.summary.BatchesUploaded += result.Batches
	}
	if err != nil {
		return o.fail(ctx, rc, domain.PhasePush, domain.EventPushFailed, err, 1)
	}
	if err := o.cleanup(ctx, rc, domain.CleanupPush); err != nil {
		return o.fail(ctx, rc, domain.PhasePush, domain.EventPushFailed, err, 1)
	}

	o.report(ctx, rc, domain.PhasePush, domain.StatePushing,
		o.event(rc, domain.EventSyncPushCompleted, "sync push completed successfully", nil))
	return nil
}

// loadPulledData downloads every locator, decodes it and routes its records.
func (o *SyncOrchestrator) loadPulledData(ctx context.Context, rc *runContext, locators []string) error {
	if len(locators) == 0 {
		return nil
	}
	notify := func(ctx context.Context, event domain.Event) domain.Decision {
		event.RunID = rc.id
		event.Params = rc.params
		o.emit(ctx, event)
		return o.opts.Policy(event)
	}
	return o.opts.MiddleStore.LoadFoundData(ctx, locators, func(ctx context.Context, locator string, content []byte) error {
		records, err := o.opts.Format.Decode(content)
		if err != nil {
			return fmt.Errorf("decode %s: %w", locator, err)
		}
		written, err := o.router.Route(ctx, records, notify)
		rc.summary.RecordsWritten += written
		if err != nil {
			return fmt.Errorf("persist %s: %w", locator, err)
		}
		logger.Debug("Wrote %d of %d record(s) from %s", written, len(records), locator)
		return nil
	}, rc.params)
}

// cleanup runs a middle-store cleanup. A failure the policy swallows is not returned.
func (o *SyncOrchestrator) cleanup(ctx context.Context, rc *runContext, phase domain.CleanupPhase) error {
	err := o.opts.MiddleStore.Cleanup(ctx, phase, rc.params)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("cleanup %s: %w", strings.ToLower(string(phase)), err)
	event := o.event(rc, domain.EventCleanupFailed, err.Error(), err)
	o.emit(ctx, event)
	if o.opts.Policy(event) == domain.Continue {
		logger.Warn("Ignoring failed %s cleanup: %v", strings.ToLower(string(phase)), err)
		return nil
	}
	return err
}

// begin commits the instance to a phase.
func (o *SyncOrchestrator) begin(
	ctx context.Context,
	rc *runContext,
	phase domain.Phase,
	units int,
	name domain.SyncEvent,
	message string,
) {
	o.mu.Lock()
	o.pending += units
	o.state = phase.RunningState()
	o.mu.Unlock()

	rc.summary.Phases = append(rc.summary.Phases, phase)
	logger.Debug("Phase %s started", phase)
	o.emit(ctx, o.event(rc, name, message, nil))
}

// report settles one completed step. The run ends when the completed step
// is the plan's last phase and nothing else is pending.
func (o *SyncOrchestrator) report(
	ctx context.Context,
	rc *runContext,
	phase domain.Phase,
	step domain.SyncState,
	event domain.Event,
) {
	o.settle(ctx, rc, phase, step, 1, event)
}

func (o *SyncOrchestrator) settle(
	ctx context.Context,
	rc *runContext,
	phase domain.Phase,
	step domain.SyncState,
	units int,
	event domain.Event,
) {
	o.mu.Lock()
	o.pending -= units
	if o.pending < 0 {
		o.pending = 0
	}
	done := step == phase.RunningState() && phase == rc.plan.Last() && o.pending == 0
	o.mu.Unlock()

	if event.Name != "" {
		o.emit(ctx, event)
	}
	if done {
		o.setState(domain.StateIdle)
		o.finish(ctx, rc, domain.StateIdle)
		o.emit(ctx, o.event(rc, domain.EventSyncCompleted, "sync completed successfully", nil))
	}
}

// fail reports a phase failure and applies the failure policy. units is the
// number of steps of the phase still pending.
func (o *SyncOrchestrator) fail(
	ctx context.Context,
	rc *runContext,
	phase domain.Phase,
	name domain.SyncEvent,
	cause error,
	units int,
) error {
	event := o.event(rc, name, cause.Error(), cause)
	o.emit(ctx, event)

	decision := domain.Abort
	if !errors.Is(cause, domain.ErrMissingPulledData) {
		decision = o.opts.Policy(event)
	}

	if decision == domain.Continue {
		logger.Warn("Phase %s failed, continuing: %v", phase, cause)
		rc.summary.FailedPhases = append(rc.summary.FailedPhases, phase)
		o.settle(ctx, rc, phase, phase.RunningState(), units, domain.Event{})
		return nil
	}

	err := fmt.Errorf("%w: %s: %w", domain.ErrSyncFailed, strings.ToLower(string(phase)), cause)
	if phase == rc.plan.Last() {
		o.mu.Lock()
		o.pending = 0
		o.state = domain.StateIdle
		o.mu.Unlock()
		o.finish(ctx, rc, domain.StateIdle)
		o.emit(ctx, o.event(rc, domain.EventSyncFailed, err.Error(), err))
		return err
	}

	o.setState(phase.FailedState())
	o.finish(ctx, rc, phase.FailedState())
	logger.Error("Phase %s failed, instance left in %s until reset: %v", phase, phase.FailedState(), cause)
	return err
}

// finish records the run summary.
func (o *SyncOrchestrator) finish(ctx context.Context, rc *runContext, final domain.SyncState) {
	rc.summary.EndedAt = o.now()
	rc.summary.FinalState = final

	run := *rc.summary
	o.mu.Lock()
	o.lastRun = &run
	o.mu.Unlock()

	logger.Info("Sync run %s finished in %s: %d written, %d pushed",
		rc.id, rc.summary.EndedAt.Sub(rc.summary.StartedAt).Round(time.Millisecond),
		rc.summary.RecordsWritten, rc.summary.RecordsPushed)

	if o.opts.RunStore == nil {
		return
	}
	if err := o.opts.RunStore.SaveRun(context.WithoutCancel(ctx), &run); err != nil {
		logger.Warn("Failed to save run %s: %v", rc.id, err)
	}
}

func (o *SyncOrchestrator) setState(state domain.SyncState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
}

// waitListener translates wait notifications into sync events. SUCCESS and
// FAILED are reported by pull itself, so every failed wait emits FAILED
// exactly once whether or not the waiter notified it.
func (o *SyncOrchestrator) waitListener(rc *runContext) driven.WaitListener {
	return func(ctx context.Context, waitEvent domain.WaitEvent, attempt int, interval time.Duration, _ error) {
		var event domain.Event
		switch waitEvent {
		case domain.WaitStarting:
			event = o.event(rc, domain.EventWaitStarting, "starting waiting for pull", nil)
		case domain.WaitNewPoll:
			event = o.event(rc, domain.EventWaitNewPoll,
				fmt.Sprintf("checking pull, check %d after %s wait", attempt, interval), nil)
		case domain.WaitEnded:
			event = o.event(rc, domain.EventWaitEnded, "end waiting for pull", nil)
		default:
			return
		}
		event.Attempt = attempt
		event.Interval = interval
		o.emit(ctx, event)
	}
}

func (o *SyncOrchestrator) event(rc *runContext, name domain.SyncEvent, message string, err error) domain.Event {
	return domain.Event{
		Name:    name,
		Message: message,
		Err:     err,
		Params:  rc.params,
		RunID:   rc.id,
	}
}

func (o *SyncOrchestrator) emit(ctx context.Context, event domain.Event) {
	if event.Time.IsZero() {
		event.Time = o.now()
	}
	logger.Debug("Event %s: %s", event.Name, event.Message)
	if o.opts.Listener != nil {
		o.opts.Listener(ctx, event)
	}
}

func planString(plan domain.Plan) string {
	parts := make([]string, len(plan))
	for i, phase := range plan {
		parts[i] = string(phase)
	}
	return strings.Join(parts, " -> ")
}
