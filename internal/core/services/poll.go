package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// Ensure Poller implements the interface.
var _ driven.Waiter = (*Poller)(nil)

// Poller is the polling wait strategy. It repeats an action with a bounded,
// squaring backoff until the action reports ready.
type Poller struct {
	option domain.PollingOption
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller. The option is validated by the caller.
func NewPoller(option domain.PollingOption) *Poller {
	return &Poller{
		option: option,
		sleep:  waitWithContext,
	}
}

// Strategy returns domain.WaitPolling.
func (p *Poller) Strategy() domain.WaitStrategy {
	return domain.WaitPolling
}

// Wait polls action until it is ready, fails, or MaxAttempts invocations
// have happened.
func (p *Poller) Wait(
	ctx context.Context,
	action driven.WaitAction,
	listener driven.WaitListener,
	params domain.Params,
) ([]string, bool, error) {
	return poll(ctx, p.option, action, listener, params, p.sleep)
}

// Poll runs the polling loop with real timers.
func Poll(
	ctx context.Context,
	option domain.PollingOption,
	action driven.WaitAction,
	listener driven.WaitListener,
	params domain.Params,
) ([]string, bool, error) {
	return poll(ctx, option, action, listener, params, waitWithContext)
}

func poll(
	ctx context.Context,
	option domain.PollingOption,
	action driven.WaitAction,
	listener driven.WaitListener,
	params domain.Params,
	sleep func(context.Context, time.Duration) error,
) ([]string, bool, error) {
	if err := option.Validate(); err != nil {
		return nil, false, fmt.Errorf("polling option: %w", err)
	}
	notify := func(event domain.WaitEvent, attempt int, interval time.Duration, err error) {
		if listener != nil {
			listener(ctx, event, attempt, interval, err)
		}
	}

	// waited is the interval slept before the current attempt; the first
	// attempt runs immediately.
	var waited time.Duration
	interval := option.InitialInterval()
	notify(domain.WaitStarting, 0, interval, nil)

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
		if attempt >= option.MaxAttempts {
			notify(domain.WaitEnded, attempt, waited, nil)
			return nil, false, nil
		}

		logger.Debug("Poll %d/%d not ready, next check in %s", attempt, option.MaxAttempts, interval)
		if err := sleep(ctx, interval); err != nil {
			return nil, false, err
		}
		waited = interval
		interval = option.NextInterval(interval)
	}
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
