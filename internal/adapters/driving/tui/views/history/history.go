// Package history provides the run history view.
package history

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// Limit is the number of runs loaded at a time.
const Limit = 50

// View lists recorded runs.
type View struct {
	styles  *styles.Styles
	history driving.HistoryService
	runs    *list.RunList
	err     error
}

// NewView creates the history view. A nil service shows an empty list.
func NewView(s *styles.Styles, history driving.HistoryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		history: history,
		runs:    list.NewRunList(s),
	}
}

// Load returns a command reading the most recent runs.
func (v *View) Load(ctx context.Context) tea.Cmd {
	if v.history == nil {
		return nil
	}
	return func() tea.Msg {
		runs, err := v.history.ListRuns(ctx, Limit)
		return messages.HistoryLoaded{Runs: runs, Err: err}
	}
}

// Update handles loaded runs and list navigation.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.HistoryLoaded:
		v.err = msg.Err
		if msg.Err == nil {
			v.runs.SetRuns(msg.Runs)
		}
		return v, nil
	case tea.KeyMsg:
		var cmd tea.Cmd
		v.runs, cmd = v.runs.Update(msg)
		return v, cmd
	}
	return v, nil
}

// View renders the history.
func (v *View) View() string {
	header := v.styles.Title.Render("Run history") + "\n\n"
	if v.err != nil {
		return header + v.styles.Error.Render("Failed to load runs: "+v.err.Error())
	}
	return header + v.runs.View()
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}

// Count returns the number of listed runs.
func (v *View) Count() int {
	return v.runs.Count()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.runs.SetDimensions(width, height-2)
}
