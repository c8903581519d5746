package driving

import (
	"context"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// HistoryService exposes finished runs and scheduler results.
type HistoryService interface {
	// ListRuns returns recent runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// GetRun returns a single run. Returns domain.ErrNotFound if absent.
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)

	// TaskHistory returns recent results of the scheduled sync task.
	TaskHistory(ctx context.Context, limit int) ([]domain.TaskResult, error)
}
