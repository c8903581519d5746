package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// defaultHistoryLimit applies when callers pass a non-positive limit.
const defaultHistoryLimit = 20

// HistoryService reads run summaries and scheduler results.
type HistoryService struct {
	runs      driven.RunStore
	scheduler driven.SchedulerStore
}

// NewHistoryService creates a history service. scheduler may be nil.
func NewHistoryService(runs driven.RunStore, scheduler driven.SchedulerStore) *HistoryService {
	return &HistoryService{runs: runs, scheduler: scheduler}
}

// ListRuns returns recent runs, most recent first.
func (s *HistoryService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s.runs == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run.
func (s *HistoryService) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}
	if s.runs == nil {
		return nil, domain.ErrNotFound
	}
	return s.runs.GetRun(ctx, runID)
}

// TaskHistory returns recent executions of the scheduled sync task. Results
// whose run the scheduler store could not join are filled from the run store.
func (s *HistoryService) TaskHistory(ctx context.Context, limit int) ([]domain.TaskResult, error) {
	if s.scheduler == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	results, err := s.scheduler.TaskHistory(ctx, domain.TaskIDSync, limit)
	if err != nil {
		return nil, fmt.Errorf("task history: %w", err)
	}
	if s.runs == nil {
		return results, nil
	}
	for i := range results {
		r := &results[i]
		if r.Run != nil || r.RunID == "" {
			continue
		}
		run, err := s.runs.GetRun(ctx, r.RunID)
		switch {
		case err == nil:
			r.Run = run
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("task history run %s: %w", r.RunID, err)
		}
	}
	return results, nil
}
