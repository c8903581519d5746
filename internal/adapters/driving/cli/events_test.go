package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

func TestEventPrinter_SilentWhenNotATerminal(t *testing.T) {
	buf := new(bytes.Buffer)
	listener := newEventPrinter(buf)

	listener(context.Background(), domain.Event{Name: domain.EventSyncCompleted, RunID: "r1"})

	assert.Empty(t, buf.String())
}

func TestEventPrinter_PrintsProgressOnTerminal(t *testing.T) {
	buf := new(bytes.Buffer)
	p := &eventPrinter{out: buf, interactive: true}

	p.handle(context.Background(), domain.Event{Name: domain.EventStartingPull, Message: "waiting"})
	p.handle(context.Background(), domain.Event{Name: domain.EventPullFoundDataCompleted})

	assert.Equal(t, "STARTING_PULL: waiting\n", buf.String())
}

func TestFeed_AttachedConsumerReceivesEvents(t *testing.T) {
	buf := new(bytes.Buffer)
	p := &eventPrinter{out: buf, interactive: true}
	events := eventFeed.attach(2)
	t.Cleanup(eventFeed.detach)

	p.handle(context.Background(), domain.Event{Name: domain.EventStartingPush})

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStartingPush, (<-events).Name)
	assert.Empty(t, buf.String(), "the terminal belongs to the consumer")
}

func TestFeed_DropsWhenFull(t *testing.T) {
	f := &feed{}
	events := f.attach(1)

	assert.True(t, f.publish(domain.Event{Name: domain.EventBatchUploaded}))
	assert.True(t, f.publish(domain.Event{Name: domain.EventTerminatorUploaded}))

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventBatchUploaded, (<-events).Name)

	f.detach()
	_, open := <-events
	assert.False(t, open)
	assert.False(t, f.publish(domain.Event{}))
	f.detach()
}
