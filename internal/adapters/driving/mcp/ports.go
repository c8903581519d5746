package mcp

import (
	"github.com/custodia-labs/synchronoux/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Sync runs and reports on sync phases.
	Sync driving.SyncOrchestrator

	// History lists finished runs. Optional.
	History driving.HistoryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Sync == nil {
		return ErrMissingSyncOrchestrator
	}
	return nil
}
