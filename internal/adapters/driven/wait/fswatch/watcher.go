// Package fswatch implements the WATCH wait strategy: it watches the pull
// directory of a filesystem middle store and re-checks readiness when a
// terminator appears.
package fswatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.Waiter = (*Watcher)(nil)

// DirFunc returns the directory to watch for a call.
type DirFunc func(params domain.Params) string

// Watcher waits for filesystem events instead of sleeping between checks.
// The polling option still bounds the number of checks, and its interval is
// used as a fallback re-check in case an event is missed.
type Watcher struct {
	dir    DirFunc
	option domain.PollingOption
}

// New creates a watcher. dir is normally filesystem.Store.Dir.
func New(dir DirFunc, option domain.PollingOption) *Watcher {
	return &Watcher{dir: dir, option: option}
}

// Strategy returns domain.WaitWatch.
func (w *Watcher) Strategy() domain.WaitStrategy {
	return domain.WaitWatch
}

// Wait checks action once, then again after every terminator event (or
// fallback interval) until it is ready or the attempts run out.
func (w *Watcher) Wait(
	ctx context.Context,
	action driven.WaitAction,
	listener driven.WaitListener,
	params domain.Params,
) ([]string, bool, error) {
	if err := w.option.Validate(); err != nil {
		return nil, false, fmt.Errorf("polling option: %w", err)
	}
	notify := func(event domain.WaitEvent, attempt int, interval time.Duration, err error) {
		if listener != nil {
			listener(ctx, event, attempt, interval, err)
		}
	}

	dir := w.dir(params)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create watch directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, false, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return nil, false, fmt.Errorf("watch %s: %w", dir, err)
	}

	interval := w.option.InitialInterval()
	notify(domain.WaitStarting, 0, interval, nil)

	var waited time.Duration
	for attempt := 1; ; attempt++ {
		notify(domain.WaitNewPoll, attempt, waited, nil)
		locators, ready, err := action(ctx, params)
		if err != nil {
			notify(domain.WaitFailed, attempt, waited, err)
			return nil, false, err
		}
		if ready {
			notify(domain.WaitSuccess, attempt, waited, nil)
			return locators, true, nil
		}
		if attempt >= w.option.MaxAttempts {
			notify(domain.WaitEnded, attempt, waited, nil)
			return nil, false, nil
		}

		started := time.Now()
		timedOut, err := w.next(ctx, watcher, interval)
		if err != nil {
			notify(domain.WaitFailed, attempt, waited, err)
			return nil, false, err
		}
		waited = time.Since(started)
		if timedOut {
			interval = w.option.NextInterval(interval)
		}
	}
}

// next blocks until a terminator event arrives or interval elapses.
func (w *Watcher) next(ctx context.Context, watcher *fsnotify.Watcher, interval time.Duration) (bool, error) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			logger.Debug("No terminator event within %s, re-checking", interval)
			return true, nil
		case event, ok := <-watcher.Events:
			if !ok {
				return false, fmt.Errorf("watcher closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if middlestore.IsTerminator(event.Name) {
				logger.Debug("Terminator event: %s", event)
				return false, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return false, fmt.Errorf("watcher closed")
			}
			return false, fmt.Errorf("watch: %w", err)
		}
	}
}
