package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// recordedWait is one notification received by a test listener.
type recordedWait struct {
	event    domain.WaitEvent
	attempt  int
	interval time.Duration
}

type waitRecorder struct {
	events []recordedWait
}

func (r *waitRecorder) listen(_ context.Context, event domain.WaitEvent, attempt int, interval time.Duration, _ error) {
	r.events = append(r.events, recordedWait{event: event, attempt: attempt, interval: interval})
}

func (r *waitRecorder) count(event domain.WaitEvent) int {
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

// newTestPoller returns a poller that records its sleeps instead of sleeping.
func newTestPoller(option domain.PollingOption) (*Poller, *[]time.Duration) {
	var slept []time.Duration
	p := NewPoller(option)
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestPoller_NeverReady_PollsExactlyMaxAttempts(t *testing.T) {
	for _, n := range []int{1, 2, 5, 17} {
		p, _ := newTestPoller(domain.PollingOption{MaxAttempts: n, BackoffMultiplier: 1})
		rec := &waitRecorder{}
		calls := 0

		locators, ready, err := p.Wait(context.Background(), func(context.Context, domain.Params) ([]string, bool, error) {
			calls++
			return nil, false, nil
		}, rec.listen, nil)

		require.NoError(t, err)
		assert.False(t, ready)
		assert.Nil(t, locators)
		assert.Equal(t, n, calls)
		assert.Equal(t, n, rec.count(domain.WaitNewPoll))
		assert.Equal(t, 1, rec.count(domain.WaitStarting))
		assert.Equal(t, 1, rec.count(domain.WaitEnded))
		assert.Equal(t, domain.WaitEnded, rec.events[len(rec.events)-1].event, "nothing is emitted after ENDED")
	}
}

func TestPoller_FailureStopsImmediately(t *testing.T) {
	boom := errors.New("bucket unreachable")
	for k := 1; k <= 4; k++ {
		p, _ := newTestPoller(domain.PollingOption{MaxAttempts: 4, BackoffMultiplier: 1})
		rec := &waitRecorder{}
		calls := 0

		_, ready, err := p.Wait(context.Background(), func(context.Context, domain.Params) ([]string, bool, error) {
			calls++
			if calls == k {
				return nil, false, boom
			}
			return nil, false, nil
		}, rec.listen, nil)

		assert.ErrorIs(t, err, boom)
		assert.False(t, ready)
		assert.Equal(t, k, calls)
		assert.Equal(t, 1, rec.count(domain.WaitFailed))
		assert.Equal(t, 0, rec.count(domain.WaitEnded))
		assert.Equal(t, 0, rec.count(domain.WaitSuccess))
	}
}

func TestPoller_ReadyOnSecondAttempt(t *testing.T) {
	p, slept := newTestPoller(domain.PollingOption{MaxAttempts: 3, BackoffMultiplier: 1})
	rec := &waitRecorder{}
	calls := 0

	locators, ready, err := p.Wait(context.Background(), func(context.Context, domain.Params) ([]string, bool, error) {
		calls++
		if calls == 2 {
			return []string{"a"}, true, nil
		}
		return nil, false, nil
	}, rec.listen, nil)

	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, []string{"a"}, locators)
	assert.Equal(t, 2, rec.count(domain.WaitNewPoll))
	assert.Equal(t, 1, rec.count(domain.WaitSuccess))
	assert.Equal(t, []time.Duration{time.Second}, *slept)
}

func TestPoller_ActionInvokedImmediately(t *testing.T) {
	p, slept := newTestPoller(domain.PollingOption{MaxAttempts: 3, BackoffMultiplier: 60})

	_, ready, err := p.Wait(context.Background(), func(context.Context, domain.Params) ([]string, bool, error) {
		return []string{}, true, nil
	}, nil, nil)

	require.NoError(t, err)
	assert.True(t, ready)
	assert.Empty(t, *slept)
}

func TestPoller_BackoffSquaresAndCaps(t *testing.T) {
	p, slept := newTestPoller(domain.PollingOption{MaxAttempts: 6, BackoffMultiplier: 2, MaxInterval: time.Hour})
	rec := &waitRecorder{}

	_, _, err := p.Wait(context.Background(), func(context.Context, domain.Params) ([]string, bool, error) {
		return nil, false, nil
	}, rec.listen, nil)

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		16 * time.Second,
		256 * time.Second,
		time.Hour,
	}, *slept)

	// NEW_POLL carries the interval waited before the attempt
	var polled []time.Duration
	for _, e := range rec.events {
		if e.event == domain.WaitNewPoll {
			polled = append(polled, e.interval)
		}
	}
	assert.Equal(t, append([]time.Duration{0}, (*slept)...), polled)
}

func TestPoller_ContextCancelledDuringWait(t *testing.T) {
	p := NewPoller(domain.PollingOption{MaxAttempts: 5, BackoffMultiplier: 30})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, ready, err := p.Wait(ctx, func(context.Context, domain.Params) ([]string, bool, error) {
		calls++
		cancel()
		return nil, false, nil
	}, nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ready)
	assert.Equal(t, 1, calls)
}

func TestPoller_PassesParams(t *testing.T) {
	p, _ := newTestPoller(domain.PollingOption{MaxAttempts: 1, BackoffMultiplier: 1})
	var got domain.Params

	_, _, err := p.Wait(context.Background(), func(_ context.Context, params domain.Params) ([]string, bool, error) {
		got = params
		return nil, false, nil
	}, nil, domain.Params{domain.ParamFolder: "inbox"})

	require.NoError(t, err)
	assert.Equal(t, "inbox", got.String(domain.ParamFolder))
}

func TestPoll_InvalidOption(t *testing.T) {
	_, _, err := Poll(context.Background(), domain.PollingOption{}, func(context.Context, domain.Params) ([]string, bool, error) {
		t.Fatal("action must not run")
		return nil, false, nil
	}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPoller_Strategy(t *testing.T) {
	assert.Equal(t, domain.WaitPolling, NewPoller(domain.DefaultPollingOption()).Strategy())
}
