package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// progressEvents are echoed to an interactive terminal.
var progressEvents = map[domain.SyncEvent]bool{
	domain.EventStartingPull:         true,
	domain.EventStartingPush:         true,
	domain.EventStartingPersisting:   true,
	domain.EventWaitNewPoll:          true,
	domain.EventPullNoData:           true,
	domain.EventBatchUploaded:        true,
	domain.EventSyncPullCompleted:    true,
	domain.EventSyncPersistCompleted: true,
	domain.EventSyncPushCompleted:    true,
	domain.EventSyncCompleted:        true,
	domain.EventSyncFailed:           true,
	domain.EventNoRecordMapping:      true,
}

// eventPrinter logs every sync event and, on a terminal, prints progress.
type eventPrinter struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
}

func newEventPrinter(out io.Writer) domain.EventListener {
	p := &eventPrinter{out: out, interactive: isTerminal(out)}
	return p.handle
}

func (p *eventPrinter) handle(_ context.Context, event domain.Event) {
	l := logger.L()
	entry := l.Info()
	if event.Err != nil {
		entry = l.Warn().Err(event.Err)
	}
	entry = entry.Str("event", string(event.Name)).Str("run", event.RunID)
	if event.Model != "" {
		entry = entry.Str("model", event.Model)
	}
	if event.Attempt > 0 {
		entry = entry.Int("attempt", event.Attempt).Dur("interval", event.Interval)
	}
	entry.Msg(event.Message)

	if eventFeed.publish(event) {
		return
	}
	if !p.interactive || !progressEvents[event.Name] {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, event)
}

// feed hands events to an attached consumer such as the TUI. Events are
// dropped when the consumer falls behind.
type feed struct {
	mu sync.Mutex
	ch chan domain.Event
}

var eventFeed = &feed{}

func (f *feed) attach(size int) <-chan domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = make(chan domain.Event, size)
	return f.ch
}

func (f *feed) detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
}

// publish reports whether a consumer is attached.
func (f *feed) publish(event domain.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ch == nil {
		return false
	}
	select {
	case f.ch <- event:
	default:
	}
	return true
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
