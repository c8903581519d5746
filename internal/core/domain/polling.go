package domain

import (
	"fmt"
	"strings"
	"time"
)

// WaitStrategy selects how the pull phase detects remote readiness.
type WaitStrategy string

const (
	// WaitPolling polls the middle store with bounded backoff.
	WaitPolling WaitStrategy = "POLLING"
	// WaitWatch watches a filesystem middle store for the terminator.
	WaitWatch WaitStrategy = "WATCH"
	// WaitWebsocket waits for a readiness notification on a websocket.
	WaitWebsocket WaitStrategy = "WEBSOCKET"
)

// ParseWaitStrategy parses a wait strategy name, case-insensitively.
// An empty name selects polling.
func ParseWaitStrategy(s string) (WaitStrategy, error) {
	w := WaitStrategy(strings.ToUpper(strings.TrimSpace(s)))
	switch w {
	case "":
		return WaitPolling, nil
	case WaitPolling, WaitWatch, WaitWebsocket:
		return w, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWaitStrategy, s)
}

// WaitEvent is a notification from a wait strategy.
type WaitEvent string

const (
	WaitStarting WaitEvent = "STARTING"
	WaitNewPoll  WaitEvent = "NEW_POLL"
	WaitSuccess  WaitEvent = "SUCCESS"
	WaitFailed   WaitEvent = "FAILED"
	WaitEnded    WaitEvent = "ENDED"
)

// DefaultMaxInterval caps the backoff interval when none is configured.
const DefaultMaxInterval = 5 * time.Minute

// PollingOption governs the wait/poll engine.
type PollingOption struct {
	// MaxAttempts is the number of times the action is invoked before giving up.
	MaxAttempts int

	// BackoffMultiplier is the initial interval in seconds. The interval is
	// squared after every attempt.
	BackoffMultiplier float64

	// MaxInterval caps the interval. Zero selects DefaultMaxInterval.
	MaxInterval time.Duration
}

// DefaultPollingOption returns the defaults used when none are configured.
func DefaultPollingOption() PollingOption {
	return PollingOption{
		MaxAttempts:       1000,
		BackoffMultiplier: 1,
		MaxInterval:       DefaultMaxInterval,
	}
}

// Validate checks the option values.
func (o PollingOption) Validate() error {
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidInput)
	}
	if o.BackoffMultiplier <= 0 {
		return fmt.Errorf("%w: backoff multiplier must be positive", ErrInvalidInput)
	}
	if o.MaxInterval < 0 {
		return fmt.Errorf("%w: max interval must not be negative", ErrInvalidInput)
	}
	return nil
}

// InitialInterval returns the first wait interval.
func (o PollingOption) InitialInterval() time.Duration {
	return o.clamp(time.Duration(o.BackoffMultiplier * float64(time.Second)))
}

// NextInterval squares the interval (in seconds) and clamps it between the
// initial interval and MaxInterval.
func (o PollingOption) NextInterval(current time.Duration) time.Duration {
	seconds := current.Seconds()
	squared := seconds * seconds
	if squared >= o.maxInterval().Seconds() {
		return o.maxInterval()
	}
	next := time.Duration(squared * float64(time.Second))
	if initial := o.InitialInterval(); next < initial {
		return initial
	}
	return next
}

func (o PollingOption) maxInterval() time.Duration {
	if o.MaxInterval == 0 {
		return DefaultMaxInterval
	}
	return o.MaxInterval
}

func (o PollingOption) clamp(d time.Duration) time.Duration {
	if limit := o.maxInterval(); d > limit || d < 0 {
		return limit
	}
	return d
}
