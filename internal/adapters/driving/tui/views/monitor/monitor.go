// Package monitor provides the live view of a sync instance.
package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// maxEvents bounds the event log kept in memory.
const maxEvents = 200

// View shows the plan, the orchestrator state and the latest events.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	sync    driving.SyncOrchestrator
	status  driving.SyncStatus
	events  []domain.Event
	folder  *input.FolderInput
	spinner spinner.Model
	editing bool
	width   int
	height  int
}

// NewView creates the monitor for an orchestrator.
func NewView(s *styles.Styles, km *keymap.KeyMap, sync driving.SyncOrchestrator) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	v := &View{
		styles:  s,
		keymap:  km,
		sync:    sync,
		folder:  input.NewFolderInput(s),
		spinner: sp,
		width:   80,
		height:  24,
	}
	v.Refresh()
	return v
}

// Init starts the spinner.
func (v *View) Init() tea.Cmd {
	return v.spinner.Tick
}

// Refresh reloads the orchestrator snapshot.
func (v *View) Refresh() {
	if v.sync != nil {
		v.status = v.sync.Status()
	}
}

// Update handles keys, events and spinner ticks.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.editing {
			return v.updateFolder(msg)
		}
		return v, v.handleKey(msg)

	case messages.SyncEventReceived:
		v.AddEvent(msg.Event)
		v.Refresh()
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) tea.Cmd {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Sync):
		return v.request("")
	case keymap.Matches(k, v.keymap.Pull):
		return v.request(domain.PhasePull)
	case keymap.Matches(k, v.keymap.Push):
		return v.request(domain.PhasePush)
	case keymap.Matches(k, v.keymap.Folder):
		v.editing = true
		return v.folder.Focus()
	case keymap.Matches(k, v.keymap.Reset):
		if v.sync != nil && v.sync.Reset() {
			v.Refresh()
		}
	}
	return nil
}

func (v *View) updateFolder(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // only the keys that end editing
	switch msg.Type {
	case tea.KeyEnter:
		v.editing = false
		v.folder.Blur()
		return v, nil
	case tea.KeyEsc:
		v.editing = false
		v.folder.SetValue("")
		v.folder.Blur()
		return v, nil
	}
	var cmd tea.Cmd
	v.folder, cmd = v.folder.Update(msg)
	return v, cmd
}

func (v *View) request(phase domain.Phase) tea.Cmd {
	var params domain.Params
	if folder := v.folder.Value(); folder != "" {
		params = domain.Params{domain.ParamFolder: folder}
	}
	return func() tea.Msg {
		return messages.RunRequested{Phase: phase, Params: params}
	}
}

// AddEvent appends an event to the log, dropping the oldest past maxEvents.
func (v *View) AddEvent(event domain.Event) {
	v.events = append(v.events, event)
	if len(v.events) > maxEvents {
		v.events = v.events[len(v.events)-maxEvents:]
	}
}

// View renders the monitor.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("synchronoux"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Plan:   %s\n", v.renderPlan())
	state := v.styles.State(v.status.State).Render(string(v.status.State))
	if v.status.Running {
		state = v.spinner.View() + " " + state
	}
	fmt.Fprintf(&b, "State:  %s\n", state)
	if v.status.Pending > 0 {
		fmt.Fprintf(&b, "Steps:  %d pending\n", v.status.Pending)
	}
	if v.editing || v.folder.Value() != "" {
		b.WriteString(v.folder.View())
		b.WriteString("\n")
	}
	if run := v.status.LastRun; run != nil {
		fmt.Fprintf(&b, "Last:   %s %s, wrote %d, pushed %d\n",
			run.RunID, v.styles.State(run.FinalState).Render(string(run.FinalState)),
			run.RecordsWritten, run.RecordsPushed)
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Subtitle.Render("Events"))
	b.WriteString("\n")
	b.WriteString(v.renderEvents())
	return b.String()
}

func (v *View) renderPlan() string {
	plan := v.status.Priority.Plan()
	active, ok := ActivePhase(v.status.State)
	activeIdx := -1
	for i, p := range plan {
		if ok && p == active {
			activeIdx = i
			break
		}
	}

	parts := make([]string, len(plan))
	for i, p := range plan {
		switch {
		case i == activeIdx:
			parts[i] = v.styles.PhaseActive.Render(string(p))
		case activeIdx >= 0 && i < activeIdx:
			parts[i] = v.styles.PhaseDone.Render(string(p))
		default:
			parts[i] = v.styles.Normal.Render(string(p))
		}
	}
	return strings.Join(parts, v.styles.Muted.Render(" -> "))
}

func (v *View) renderEvents() string {
	if len(v.events) == 0 {
		return v.styles.Muted.Render("No events yet")
	}
	// header, plan, state, last run and the status bar
	visible := max(v.height-10, 1)
	start := max(len(v.events)-visible, 0)

	lines := make([]string, 0, len(v.events)-start)
	for _, e := range v.events[start:] {
		line := fmt.Sprintf("%s  %s", e.Time.Format("15:04:05"), e)
		if e.Err != nil || e.Name == domain.EventSyncFailed {
			line = v.styles.Error.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ActivePhase maps a running state to its phase.
func ActivePhase(state domain.SyncState) (domain.Phase, bool) {
	switch state {
	case domain.StatePulling, domain.StatePullingFetchingData:
		return domain.PhasePull, true
	case domain.StatePersisting:
		return domain.PhasePersist, true
	case domain.StatePushing:
		return domain.PhasePush, true
	}
	return "", false
}

// Editing reports whether the folder input has focus.
func (v *View) Editing() bool {
	return v.editing
}

// Folder returns the folder passed to the next run.
func (v *View) Folder() string {
	return v.folder.Value()
}

// Events returns the logged events.
func (v *View) Events() []domain.Event {
	return v.events
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.folder.SetWidth(width)
}
