package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore. Task results live next to
// sync_runs so history reads join each execution to the run it started.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_seconds, last_run, next_run,
	last_error, last_success, last_run_id, enabled`

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM scheduled_tasks WHERE id = ?", taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM scheduled_tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scheduled tasks: %w", err)
	}
	return tasks, nil
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			last_run_id = excluded.last_run_id,
			enabled = excluded.enabled
	`, task.ID, task.Name, int64(task.Interval/time.Second),
		formatTime(task.LastRun), formatTime(task.NextRun), nullString(task.LastError),
		formatTime(task.LastSuccess), nullString(task.LastRunID), task.Enabled)
	if err != nil {
		return fmt.Errorf("saving scheduled task %s: %w", task.ID, err)
	}
	return nil
}

// RecordResult inserts the execution and trims the task's older results in
// one transaction, so a crash never leaves history over the limit.
func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult, keep int) error {
	if result == nil || result.TaskID == "" || result.Outcome == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_results (task_id, run_id, started_at, ended_at, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.TaskID, nullString(result.RunID),
		result.StartedAt.UTC().Format(timeLayout), result.EndedAt.UTC().Format(timeLayout),
		string(result.Outcome), nullString(result.Error)); err != nil {
		return fmt.Errorf("recording task result: %w", err)
	}

	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM task_results
			WHERE task_id = ? AND id NOT IN (
				SELECT id FROM task_results WHERE task_id = ?
				ORDER BY started_at DESC, id DESC
				LIMIT ?
			)
		`, result.TaskID, result.TaskID, keep); err != nil {
			return fmt.Errorf("trimming task history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing task result: %w", err)
	}
	return nil
}

func (s *schedulerStore) TaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT t.task_id, t.run_id, t.started_at, t.ended_at, t.outcome, t.error,
			r.run_id, r.priority, r.phases, r.failed_phases, r.records_written,
			r.records_pushed, r.batches_uploaded, r.started_at, r.ended_at, r.final_state
		FROM task_results t
		LEFT JOIN sync_runs r ON r.run_id = t.run_id
		WHERE t.task_id = ?
		ORDER BY t.started_at DESC, t.id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		result, err := scanTaskResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task history: %w", err)
	}
	return results, nil
}

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var seconds int64
	var lastRun, nextRun, lastError, lastSuccess, lastRunID sql.NullString

	if err := row.Scan(&task.ID, &task.Name, &seconds, &lastRun, &nextRun,
		&lastError, &lastSuccess, &lastRunID, &task.Enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}

	task.Interval = time.Duration(seconds) * time.Second
	task.LastRun = parseTime(lastRun)
	task.NextRun = parseTime(nextRun)
	task.LastError = lastError.String
	task.LastSuccess = parseTime(lastSuccess)
	task.LastRunID = lastRunID.String
	return &task, nil
}

func scanTaskResult(row rowScanner) (*domain.TaskResult, error) {
	var result domain.TaskResult
	var runID, startedAt, endedAt, errMsg sql.NullString
	var outcome string
	var run runRow

	dest := append([]any{&result.TaskID, &runID, &startedAt, &endedAt, &outcome, &errMsg}, run.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning task result: %w", err)
	}

	result.RunID = runID.String
	result.StartedAt = parseTime(startedAt)
	result.EndedAt = parseTime(endedAt)
	result.Outcome = domain.TaskOutcome(outcome)
	result.Error = errMsg.String

	summary, err := run.summary()
	if err != nil {
		return nil, fmt.Errorf("task result %s: %w", result.RunID, err)
	}
	result.Run = summary
	return &result, nil
}

// nullString stores the empty string as NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
