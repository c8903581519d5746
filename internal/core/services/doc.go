// Package services implements the driving port interfaces.
//
// SyncOrchestrator sequences the pull, persist and push phases of a run.
// It delegates readiness detection to a Waiter (Poller by default),
// record routing to Router and exports to Batcher. Scheduler initiates
// runs on an interval for the daemon.
//
// Services are pure Go with no CGO and call infrastructure only through
// the driven ports.
package services
