// Package domain defines the core entities of the synchronisation engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SyncRecord: A single record moving through the middle store
//   - RecordMap: Per-model routing and field translation rules
//   - SyncState / SyncPriority: The orchestrator state machine vocabulary
//   - Event: A lifecycle notification emitted by the orchestrator
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
