// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// RunList displays recorded runs in a navigable list.
type RunList struct {
	runs     []domain.RunSummary
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewRunList creates a new run list component.
func NewRunList(s *styles.Styles) *RunList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &RunList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Update handles list navigation keys.
func (r *RunList) Update(msg tea.Msg) (*RunList, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		r.MoveUp()
	case "down", "j":
		r.MoveDown()
	}
	return r, nil
}

// View renders the list followed by the details of the selected run.
func (r *RunList) View() string {
	if len(r.runs) == 0 {
		return r.styles.Muted.Render("No runs recorded")
	}

	lines := []string{r.styles.Subtitle.Render(fmt.Sprintf("Runs (%d)", len(r.runs))), ""}

	// one line per run plus the details block
	visible := r.height - 10
	if visible < 1 {
		visible = 1
	}
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.runs))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderRow(i, &r.runs[i]))
	}
	lines = append(lines, "", r.renderDetails(&r.runs[r.selected]))
	return strings.Join(lines, "\n")
}

func (r *RunList) renderRow(index int, run *domain.RunSummary) string {
	row := fmt.Sprintf("%s  %-*s  %s",
		run.StartedAt.Format("2006-01-02 15:04:05"),
		len(domain.StatePersistingFailed), run.FinalState,
		run.Priority,
	)
	if index == r.selected {
		return r.styles.Selected.Render("> " + row)
	}
	return "  " + r.styles.State(run.FinalState).Render(row)
}

func (r *RunList) renderDetails(run *domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:      %s\n", run.RunID)
	fmt.Fprintf(&b, "Phases:   %s\n", phaseList(run.Phases))
	if len(run.FailedPhases) > 0 {
		fmt.Fprintf(&b, "Failed:   %s\n", r.styles.Error.Render(phaseList(run.FailedPhases)))
	}
	fmt.Fprintf(&b, "Written:  %d\n", run.RecordsWritten)
	fmt.Fprintf(&b, "Pushed:   %d in %d batch(es)\n", run.RecordsPushed, run.BatchesUploaded)
	if !run.EndedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s", run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	return r.styles.Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func phaseList(phases []domain.Phase) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return strings.Join(names, " -> ")
}

// SetRuns replaces the list and selects the first run.
func (r *RunList) SetRuns(runs []domain.RunSummary) {
	r.runs = runs
	r.selected = 0
}

// Runs returns the listed runs.
func (r *RunList) Runs() []domain.RunSummary {
	return r.runs
}

// Selected returns the index of the selected run.
func (r *RunList) Selected() int {
	return r.selected
}

// SelectedRun returns the selected run, or nil when the list is empty.
func (r *RunList) SelectedRun() *domain.RunSummary {
	if len(r.runs) == 0 {
		return nil
	}
	return &r.runs[r.selected]
}

// MoveUp moves selection up.
func (r *RunList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *RunList) MoveDown() {
	if r.selected < len(r.runs)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *RunList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of runs.
func (r *RunList) Count() int {
	return len(r.runs)
}
