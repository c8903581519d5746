// Package sqlite provides the SQLite-based state store of the daemon.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - SchedulerStore: Scheduled task state and executions joined to sync_runs
//   - RunStore: Summaries of finished sync runs
//
// Records being synchronised never live here; they are read and written by
// the sqlorm package, which can share the connection returned by Open.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.synchronoux/data/state.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
