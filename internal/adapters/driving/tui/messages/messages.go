// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMonitor shows the plan, the live state and the event log.
	ViewMonitor ViewType = iota
	// ViewHistory lists recorded runs.
	ViewHistory
	// ViewHelp lists the keybindings.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMonitor:
		return "monitor"
	case ViewHistory:
		return "history"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// SyncEventReceived carries one event emitted by the orchestrator.
type SyncEventReceived struct {
	Event domain.Event
}

// EventsClosed is sent once the event feed is closed.
type EventsClosed struct{}

// RunRequested asks the app to start a phase ("" for the whole plan).
type RunRequested struct {
	Phase  domain.Phase
	Params domain.Params
}

// RunFinished is sent when a started run returns.
type RunFinished struct {
	Phase domain.Phase
	Err   error
}

// HistoryLoaded carries recorded runs, most recent first.
type HistoryLoaded struct {
	Runs []domain.RunSummary
	Err  error
}

// StatusTick triggers a refresh of the orchestrator snapshot.
type StatusTick struct{}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
