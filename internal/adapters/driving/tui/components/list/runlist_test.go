package list

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

func sampleRuns() []domain.RunSummary {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []domain.RunSummary{
		{
			RunID:          "run-2",
			Priority:       domain.PriorityPullPush,
			Phases:         []domain.Phase{domain.PhasePull, domain.PhasePersist, domain.PhasePush},
			RecordsWritten: 12,
			RecordsPushed:  40,
			StartedAt:      start,
			EndedAt:        start.Add(3 * time.Second),
			FinalState:     domain.StateIdle,
		},
		{
			RunID:        "run-1",
			Priority:     domain.PriorityPullPush,
			Phases:       []domain.Phase{domain.PhasePull},
			FailedPhases: []domain.Phase{domain.PhasePull},
			StartedAt:    start.Add(-time.Hour),
			FinalState:   domain.StatePullFailed,
		},
	}
}

func TestRunList_Empty(t *testing.T) {
	l := NewRunList(nil)

	assert.Contains(t, l.View(), "No runs recorded")
	assert.Nil(t, l.SelectedRun())
	assert.Equal(t, 0, l.Count())
}

func TestRunList_SetRunsSelectsFirst(t *testing.T) {
	l := NewRunList(nil)
	l.SetRuns(sampleRuns())
	l.MoveDown()

	l.SetRuns(sampleRuns())

	require.NotNil(t, l.SelectedRun())
	assert.Equal(t, "run-2", l.SelectedRun().RunID)
}

func TestRunList_Navigation(t *testing.T) {
	l := NewRunList(nil)
	l.SetRuns(sampleRuns())

	l.MoveUp()
	assert.Equal(t, 0, l.Selected())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 1, l.Selected())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, l.Selected(), "selection stops at the last run")

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, l.Selected())
}

func TestRunList_ViewShowsSelectedDetails(t *testing.T) {
	l := NewRunList(nil)
	l.SetDimensions(100, 30)
	l.SetRuns(sampleRuns())

	view := l.View()
	assert.Contains(t, view, "Runs (2)")
	assert.Contains(t, view, "run-2")
	assert.Contains(t, view, "PULL -> PERSIST -> PUSH")
	assert.Contains(t, view, "3s")

	l.MoveDown()
	view = l.View()
	assert.Contains(t, view, "run-1")
	assert.Contains(t, view, "Failed")
}
