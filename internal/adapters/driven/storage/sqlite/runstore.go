package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// timeLayout is fixed width so that stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// runColumns are the sync_runs columns in the order runRow scans them.
const runColumns = `run_id, priority, phases, failed_phases, records_written,
	records_pushed, batches_uploaded, started_at, ended_at, final_state`

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// SaveRun stores or replaces a run summary keyed by RunID.
func (s *runStore) SaveRun(ctx context.Context, run *domain.RunSummary) error {
	if run == nil || run.RunID == "" {
		return domain.ErrInvalidInput
	}

	phases, err := json.Marshal(phaseNames(run.Phases))
	if err != nil {
		return fmt.Errorf("marshalling phases: %w", err)
	}
	failed, err := json.Marshal(phaseNames(run.FailedPhases))
	if err != nil {
		return fmt.Errorf("marshalling failed phases: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (run_id, priority, phases, failed_phases, records_written,
			records_pushed, batches_uploaded, started_at, ended_at, final_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			priority = excluded.priority,
			phases = excluded.phases,
			failed_phases = excluded.failed_phases,
			records_written = excluded.records_written,
			records_pushed = excluded.records_pushed,
			batches_uploaded = excluded.batches_uploaded,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			final_state = excluded.final_state
	`, run.RunID, string(run.Priority), string(phases), string(failed),
		run.RecordsWritten, run.RecordsPushed, run.BatchesUploaded,
		run.StartedAt.UTC().Format(timeLayout), formatTime(run.EndedAt),
		string(run.FinalState))
	if err != nil {
		return fmt.Errorf("saving sync run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM sync_runs WHERE run_id = ?", runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// ListRuns returns recent runs, most recent first.
func (s *runStore) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM sync_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	return runs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// runRow is a sync_runs row with every column nullable, so it also scans
// the outer side of a LEFT JOIN.
type runRow struct {
	id, priority, phases, failed   sql.NullString
	written, pushed, batches       sql.NullInt64
	startedAt, endedAt, finalState sql.NullString
}

func (r *runRow) dest() []any {
	return []any{&r.id, &r.priority, &r.phases, &r.failed, &r.written,
		&r.pushed, &r.batches, &r.startedAt, &r.endedAt, &r.finalState}
}

// summary returns nil for a join row with no matching run.
func (r *runRow) summary() (*domain.RunSummary, error) {
	if !r.id.Valid {
		return nil, nil
	}
	run := &domain.RunSummary{
		RunID:           r.id.String,
		Priority:        domain.SyncPriority(r.priority.String),
		RecordsWritten:  int(r.written.Int64),
		RecordsPushed:   int(r.pushed.Int64),
		BatchesUploaded: int(r.batches.Int64),
		StartedAt:       parseTime(r.startedAt),
		EndedAt:         parseTime(r.endedAt),
		FinalState:      domain.SyncState(r.finalState.String),
	}
	var err error
	if run.Phases, err = parsePhases(r.phases.String); err != nil {
		return nil, err
	}
	if run.FailedPhases, err = parsePhases(r.failed.String); err != nil {
		return nil, err
	}
	return run, nil
}

func scanRun(row rowScanner) (*domain.RunSummary, error) {
	var r runRow
	if err := row.Scan(r.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sync run: %w", err)
	}
	return r.summary()
}

func phaseNames(phases []domain.Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return names
}

func parsePhases(raw string) ([]domain.Phase, error) {
	if raw == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("unmarshalling phases: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	phases := make([]domain.Phase, len(names))
	for i, n := range names {
		phases[i] = domain.Phase(n)
	}
	return phases, nil
}

// formatTime stores the zero time as NULL.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
