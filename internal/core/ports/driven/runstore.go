package driven

import (
	"context"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// RunStore persists a summary of every finished run.
type RunStore interface {
	// SaveRun stores or replaces a run summary keyed by RunID.
	SaveRun(ctx context.Context, run *domain.RunSummary) error

	// GetRun retrieves a run by ID. Returns domain.ErrNotFound if absent.
	GetRun(ctx context.Context, runID string) (*domain.RunSummary, error)

	// ListRuns returns recent runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}
