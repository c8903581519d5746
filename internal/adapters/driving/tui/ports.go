// Package tui provides an interactive terminal monitor for a sync instance.
// It is a driving adapter: every action goes through the driving ports.
package tui

import (
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// Ports aggregates the driving ports and feeds used by the TUI.
type Ports struct {
	// Sync runs and reports on the sync instance.
	Sync driving.SyncOrchestrator

	// History lists recorded runs. Optional.
	History driving.HistoryService

	// Events delivers orchestrator events as they are emitted. Optional;
	// without it the monitor only refreshes on its status tick.
	Events <-chan domain.Event
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Sync == nil {
		return ErrMissingSyncOrchestrator
	}
	return nil
}
