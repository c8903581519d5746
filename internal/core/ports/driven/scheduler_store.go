package driven

import (
	"context"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// SchedulerStore persists the daemon's scheduled task and the executions it
// started. Executions reference sync runs by ID, so history reads can show
// what each scheduled run actually moved.
type SchedulerStore interface {
	// GetTask returns nil and no error for an unknown task.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask upserts by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends an execution and trims that task's history to the
	// newest keep entries in the same write.
	RecordResult(ctx context.Context, result *domain.TaskResult, keep int) error

	// TaskHistory returns executions of taskID, newest first, each with Run
	// filled from the RunStore when its run was persisted.
	TaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
