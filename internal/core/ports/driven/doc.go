// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided to build a sync orchestrator:
//
//   - ORM: Reads and writes records in the local relational store
//   - MiddleStore: Remote storage both sides exchange batches through
//   - Format: Encodes and decodes batch payloads
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Waiter: Readiness detection. Defaults to polling.
//   - RunStore: Run history. Without it, runs are only reported as events.
//   - SchedulerStore: The scheduled task and the runs it started.
//   - ConfigStore: Dotted-key access to the configuration file.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
