package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is the number of results kept per task.
const historyRetention = 100

// Scheduler initiates sync runs on a fixed interval.
// It is a pure core service with no external control API.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	syncOrch driving.SyncOrchestrator
	params   domain.Params
	tick     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	syncOrch driving.SyncOrchestrator,
) *Scheduler {
	return &Scheduler{
		config:   config,
		store:    store,
		syncOrch: syncOrch,
		tick:     time.Minute,
	}
}

// WithParams sets the parameters every scheduled run is initiated with.
func (s *Scheduler) WithParams(params domain.Params) *Scheduler {
	s.params = params
	return s
}

// Start begins the scheduler loop. This method blocks until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	if taskCfg := s.config.GetTaskConfig(domain.TaskIDSync); taskCfg.Enabled {
		if err := s.ensureTask(ctx, domain.TaskIDSync, "Sync", taskCfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			// Recalculate next run from now
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	// Check for due tasks immediately on startup
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask executes a single task and records the run it started.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	if task.ID != domain.TaskIDSync {
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result := &domain.TaskResult{TaskID: task.ID, StartedAt: time.Now()}
		runID, skipped, err := s.runSync(ctx)
		result.EndedAt = time.Now()
		result.RunID = runID

		switch {
		case skipped:
			result.Outcome = domain.OutcomeSkipped
		case err != nil:
			result.Outcome = domain.OutcomeFailed
			result.Error = err.Error()
			task.LastError = err.Error()
		default:
			result.Outcome = domain.OutcomeSucceeded
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		if runID != "" {
			task.LastRunID = runID
		}
		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(ctx, result, historyRetention); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
	}()
}

// runSync initiates one run and returns its ID. The ID is read from the
// instance's last run and is only reported when Initiate replaced it, so a
// run that failed before starting is not linked to an older one. A busy
// instance skips the tick.
func (s *Scheduler) runSync(ctx context.Context) (runID string, skipped bool, err error) {
	if s.syncOrch == nil {
		return "", true, nil
	}

	before := lastRunID(s.syncOrch)
	err = s.syncOrch.Initiate(ctx, s.params)
	if errors.Is(err, domain.ErrSyncInProgress) {
		logger.Debug("scheduler: skipping sync, instance is %s", s.syncOrch.State())
		return "", true, nil
	}

	if after := lastRunID(s.syncOrch); after != before {
		runID = after
	}
	return runID, false, err
}

func lastRunID(orch driving.SyncOrchestrator) string {
	if run := orch.Status().LastRun; run != nil {
		return run.RunID
	}
	return ""
}
