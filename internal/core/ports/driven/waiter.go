package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// WaitAction is the readiness check a Waiter repeats. It is normally
// MiddleStore.WaitAction.
type WaitAction func(ctx context.Context, params domain.Params) ([]string, bool, error)

// WaitListener receives wait notifications. attempt and interval are only
// meaningful for NEW_POLL, where interval is the delay already slept before
// that attempt (zero for the first), not the delay before the next one.
type WaitListener func(ctx context.Context, event domain.WaitEvent, attempt int, interval time.Duration, err error)

// Waiter blocks until the remote side has finished an export.
type Waiter interface {
	// Wait returns the export's locators and true once ready.
	// It returns (nil, false, nil) when it gave up without finding data,
	// and an error when the action failed or ctx ended.
	Wait(ctx context.Context, action WaitAction, listener WaitListener, params domain.Params) ([]string, bool, error)

	// Strategy names the wait strategy.
	Strategy() domain.WaitStrategy
}
