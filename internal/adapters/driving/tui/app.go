package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/views/history"
	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/views/monitor"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// statusInterval is how often the monitor re-reads the orchestrator state.
const statusInterval = time.Second

// App is the TUI application following the Elm architecture.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	monitorView *monitor.View
	historyView *history.View
	statusBar   *status.Bar

	currentView  messages.ViewType
	previousView messages.ViewType

	// running is set while a run started from the TUI is in flight.
	running bool
	err     error

	width  int
	height int
	ready  bool
}

var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		help:        help.New(),
		monitorView: monitor.NewView(s, km, ports.Sync),
		historyView: history.NewView(s, ports.History),
		statusBar:   status.NewBar(s, km),
		currentView: messages.ViewMonitor,
	}, nil
}

// WithContext sets the context used for runs and history reads.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("synchronoux"),
		a.monitorView.Init(),
		a.historyView.Load(a.ctx),
		a.listen(),
		tick(),
	)
}

// listen waits for the next orchestrator event.
func (a *App) listen() tea.Cmd {
	events := a.ports.Events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return messages.EventsClosed{}
		}
		return messages.SyncEventReceived{Event: event}
	}
}

func tick() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg {
		return messages.StatusTick{}
	})
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.ViewChanged:
		return a, a.switchView(msg.View)

	case messages.RunRequested:
		return a, a.startRun(msg)

	case messages.RunFinished:
		a.running = false
		a.monitorView.Refresh()
		a.finishRun(msg)
		return a, a.historyView.Load(a.ctx)

	case messages.SyncEventReceived:
		a.monitorView, _ = a.monitorView.Update(msg)
		if a.running {
			a.statusBar.SetMessage(string(msg.Event.Name))
		}
		return a, a.listen()

	case messages.EventsClosed:
		return a, nil

	case messages.StatusTick:
		a.monitorView.Refresh()
		return a, tick()

	case messages.HistoryLoaded:
		a.historyView, cmd = a.historyView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.setError(msg.Err)
		return a, nil
	}

	// spinner ticks and input blinks
	a.monitorView, cmd = a.monitorView.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	if k == "ctrl+c" {
		return a, tea.Quit
	}

	// The folder input owns the keyboard while it is focused.
	if a.currentView == messages.ViewMonitor && a.monitorView.Editing() {
		var cmd tea.Cmd
		a.monitorView, cmd = a.monitorView.Update(msg)
		return a, cmd
	}

	switch {
	case keymap.Matches(k, a.keymap.Quit):
		return a, tea.Quit
	case keymap.Matches(k, a.keymap.Help):
		if a.currentView == messages.ViewHelp {
			return a, a.switchView(a.previousView)
		}
		return a, a.switchView(messages.ViewHelp)
	case keymap.Matches(k, a.keymap.Back):
		if a.currentView != messages.ViewMonitor {
			return a, a.switchView(messages.ViewMonitor)
		}
		return a, nil
	case keymap.Matches(k, a.keymap.Tab):
		if a.currentView == messages.ViewHistory {
			return a, a.switchView(messages.ViewMonitor)
		}
		return a, a.switchView(messages.ViewHistory)
	}

	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMonitor:
		a.monitorView, cmd = a.monitorView.Update(msg)
	case messages.ViewHistory:
		if keymap.Matches(k, a.keymap.Refresh) {
			return a, a.historyView.Load(a.ctx)
		}
		a.historyView, cmd = a.historyView.Update(msg)
	case messages.ViewHelp:
	}
	return a, cmd
}

func (a *App) switchView(view messages.ViewType) tea.Cmd {
	if view == a.currentView {
		return nil
	}
	a.previousView = a.currentView
	a.currentView = view

	switch view {
	case messages.ViewHistory:
		a.statusBar.SetState(status.StateHistory)
		return a.historyView.Load(a.ctx)
	case messages.ViewHelp:
		a.statusBar.SetState(status.StateHelp)
	case messages.ViewMonitor:
		a.restoreBar()
	}
	return nil
}

// restoreBar puts the status bar back in the state matching the app.
func (a *App) restoreBar() {
	switch {
	case a.running:
		a.statusBar.SetState(status.StateRunning)
	case a.err != nil:
		a.statusBar.SetState(status.StateError)
	default:
		a.statusBar.SetState(status.StateReady)
	}
}

func (a *App) startRun(req messages.RunRequested) tea.Cmd {
	if a.running {
		a.setError(domain.ErrSyncInProgress)
		return nil
	}
	a.running = true
	a.err = nil
	a.statusBar.SetState(status.StateRunning)
	a.statusBar.SetMessage("Starting " + runLabel(req.Phase) + "...")

	ctx, sync := a.ctx, a.ports.Sync
	return func() tea.Msg {
		var err error
		switch req.Phase {
		case "":
			err = sync.Initiate(ctx, req.Params)
		case domain.PhasePull:
			err = sync.Pull(ctx, req.Params)
		case domain.PhasePush:
			err = sync.Push(ctx, req.Params)
		default:
			err = fmt.Errorf("%w: phase %s cannot be started here", domain.ErrInvalidInput, req.Phase)
		}
		return messages.RunFinished{Phase: req.Phase, Err: err}
	}
}

func (a *App) finishRun(msg messages.RunFinished) {
	if msg.Err != nil {
		a.setError(msg.Err)
		return
	}
	if state := a.ports.Sync.State(); state.Failed() {
		a.setError(fmt.Errorf("instance left in %s", state))
		return
	}
	a.err = nil
	a.statusBar.SetState(status.StateReady)
	a.statusBar.SetMessage(runLabel(msg.Phase) + " completed")
}

func (a *App) setError(err error) {
	a.err = err
	a.statusBar.SetState(status.StateError)
	a.statusBar.SetMessage(err.Error())
}

func runLabel(phase domain.Phase) string {
	if phase == "" {
		return "sync"
	}
	return strings.ToLower(string(phase))
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewHistory:
		body = a.historyView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.monitorView.View()
	}

	bodyHeight := max(a.height-1, 1)
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, body, a.statusBar.View())
}

func (a *App) viewHelp() string {
	a.help.ShowAll = true
	return a.styles.Title.Render("Help") + "\n\n" + a.help.View(a.keymap) + "\n\n" +
		a.styles.Muted.Render("[?] or [esc] to go back")
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Running reports whether a run started from the TUI is in flight.
func (a *App) Running() bool {
	return a.running
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.monitorView.SetDimensions(width, height-1)
	a.historyView.SetDimensions(width, height-1)
	a.statusBar.SetWidth(width)
	a.help.Width = width
}
