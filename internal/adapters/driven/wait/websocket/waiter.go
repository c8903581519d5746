// Package websocket implements the WEBSOCKET wait strategy: the remote side
// (or a relay) sends a notification over a websocket when an export is
// complete, and each notification triggers a readiness check.
package websocket

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
	"github.com/custodia-labs/synchronoux/internal/logger"
)

// Ensure Waiter implements the interface.
var _ driven.Waiter = (*Waiter)(nil)

// Notification is the message the server sends when an export is ready.
type Notification struct {
	// Event names the notification. Only EventExportReady triggers a check;
	// other events are ignored.
	Event string `json:"event"`

	// Folder optionally overrides the pull prefix for the check.
	Folder string `json:"folder,omitempty"`
}

// EventExportReady announces a finished export.
const EventExportReady = "EXPORT_READY"

// Waiter waits for readiness notifications on a websocket.
type Waiter struct {
	url    string
	header http.Header
	option domain.PollingOption
}

// New creates a waiter dialing url. MaxAttempts in option bounds the number
// of readiness checks.
func New(url string, header http.Header, option domain.PollingOption) *Waiter {
	return &Waiter{url: url, header: header, option: option}
}

// Strategy returns domain.WaitWebsocket.
func (w *Waiter) Strategy() domain.WaitStrategy {
	return domain.WaitWebsocket
}

// Wait checks action once on connect and again on every EXPORT_READY
// notification. A normal close from the server ends the wait without data.
func (w *Waiter) Wait(
	ctx context.Context,
	action driven.WaitAction,
	listener driven.WaitListener,
	params domain.Params,
) ([]string, bool, error) {
	if err := w.option.Validate(); err != nil {
		return nil, false, fmt.Errorf("polling option: %w", err)
	}
	if w.url == "" {
		return nil, false, fmt.Errorf("%w: websocket url is required", domain.ErrInvalidInput)
	}
	notify := func(event domain.WaitEvent, attempt int, interval time.Duration, err error) {
		if listener != nil {
			listener(ctx, event, attempt, interval, err)
		}
	}

	conn, _, err := websocket.Dial(ctx, w.url, &websocket.DialOptions{HTTPHeader: w.header})
	if err != nil {
		return nil, false, fmt.Errorf("dial %s: %w", w.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	notify(domain.WaitStarting, 0, 0, nil)

	var waited time.Duration
	checkParams := params
	for attempt := 1; ; attempt++ {
		notify(domain.WaitNewPoll, attempt, waited, nil)
		locators, ready, err := action(ctx, checkParams)
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
		n, err := w.next(ctx, conn)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				notify(domain.WaitEnded, attempt, waited, nil)
				return nil, false, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, ctxErr
			}
			err = fmt.Errorf("read notification: %w", err)
			notify(domain.WaitFailed, attempt, waited, err)
			return nil, false, err
		}
		waited = time.Since(started)
		checkParams = withFolder(params, n.Folder)
	}
}

// next reads messages until an EXPORT_READY notification arrives.
func (w *Waiter) next(ctx context.Context, conn *websocket.Conn) (Notification, error) {
	for {
		var n Notification
		if err := wsjson.Read(ctx, conn, &n); err != nil {
			return Notification{}, err
		}
		if n.Event != EventExportReady {
			logger.Debug("Ignoring websocket notification %q", n.Event)
			continue
		}
		return n, nil
	}
}

func withFolder(params domain.Params, folder string) domain.Params {
	if folder == "" {
		return params
	}
	out := make(domain.Params, len(params)+1)
	maps.Copy(out, params)
	out[domain.ParamFolder] = folder
	return out
}
