package domain

import "time"

// ScheduledTask represents a recurring background task, such as a periodic sync run.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// LastRunID is the sync run most recently started by the task.
	LastRunID string

	// Enabled indicates whether the task is active.
	Enabled bool
}

// TaskOutcome is how a scheduled execution ended.
type TaskOutcome string

const (
	// OutcomeSucceeded means the run the execution started reached IDLE.
	OutcomeSucceeded TaskOutcome = "SUCCEEDED"
	// OutcomeFailed means the run failed or could not be initiated.
	OutcomeFailed TaskOutcome = "FAILED"
	// OutcomeSkipped means the instance was busy and no run was started.
	OutcomeSkipped TaskOutcome = "SKIPPED"
)

// TaskResult is one scheduled execution and the sync run it started.
type TaskResult struct {
	TaskID string

	// RunID links the execution to its RunSummary. Empty when skipped or
	// when initiation failed before a run ID was issued.
	RunID string

	StartedAt time.Time
	EndedAt   time.Time
	Outcome   TaskOutcome

	// Error is set when Outcome is OutcomeFailed.
	Error string

	// Run is the summary of RunID, filled by the store on read. Nil when the
	// run was never persisted.
	Run *RunSummary
}

// Items returns the records moved by the linked run.
func (r *TaskResult) Items() int {
	if r.Run == nil {
		return 0
	}
	return r.Run.Items()
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	// Enabled indicates whether this task should run.
	Enabled bool

	// Interval defines how often the task should run.
	Interval time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDSync: {
				Enabled:  true,
				Interval: 15 * time.Minute,
			},
		},
	}
}

// TaskIDSync is the built-in task that initiates a sync run.
const TaskIDSync = "sync"
