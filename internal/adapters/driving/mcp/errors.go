// Package mcp provides an MCP (Model Context Protocol) server adapter for synchronoux.
// It lets AI assistants inspect and start sync runs.
package mcp

import "errors"

// ErrMissingSyncOrchestrator is returned when the sync orchestrator is not provided.
var ErrMissingSyncOrchestrator = errors.New("mcp: sync orchestrator is required")
