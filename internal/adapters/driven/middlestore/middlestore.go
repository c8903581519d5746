// Package middlestore holds what the middle-store backends share: the
// terminator convention, locator ordering, cleanup events and rate limiting.
// The backends live in the gcs, s3, minio and filesystem subpackages.
package middlestore

import (
	"context"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// Event is a notification from a middle-store backend.
type Event string

const (
	EventPulledLocators     Event = "PULLED_LOCATORS"
	EventPreparingToGetData Event = "PREPARING_TO_GET_DATA"
	EventSuccessfullyGot    Event = "SUCCESSFULLY_GET_DATA"
	EventCleanupPullStart   Event = "CLEANUP_PULL_STARTING"
	EventCleanupPullDone    Event = "CLEANUP_PULL_COMPLETED"
	EventCleanupPushStart   Event = "CLEANUP_PUSH_STARTING"
	EventCleanupPushDone    Event = "CLEANUP_PUSH_COMPLETED"
	EventSkippingPullClean  Event = "SKIPPING_PULL_CLEANUP"
	EventSkippingPushClean  Event = "SKIPPING_PUSH_CLEANUP"
)

// Listener receives backend notifications.
type Listener func(ctx context.Context, event Event, message string, params domain.Params)

// Options are the settings every backend understands.
type Options struct {
	// Bucket names the bucket (or root directory) holding the exchange.
	Bucket string

	// PullPrefix is where WaitAction looks for the remote export.
	// params[domain.ParamFolder] overrides it per call.
	PullPrefix string

	// SkipCleanup keeps pulled objects in place.
	SkipCleanup bool

	// Listener receives backend notifications. Optional.
	Listener Listener

	// Limiter throttles remote calls. Optional.
	Limiter *RateLimiter
}

// Notify sends an event to the listener, if any.
func (o Options) Notify(ctx context.Context, event Event, message string, params domain.Params) {
	if o.Listener != nil {
		o.Listener(ctx, event, message, params)
	}
}

// Wait blocks on the rate limiter, if any.
func (o Options) Wait(ctx context.Context) error {
	if o.Limiter == nil {
		return nil
	}
	return o.Limiter.Wait(ctx)
}

// Throttle records a throttling response on the rate limiter, if any.
func (o Options) Throttle(retryAfter time.Duration) {
	if o.Limiter != nil {
		o.Limiter.RecordThrottle(retryAfter)
	}
}

// Prefix returns the pull prefix for a call.
func (o Options) Prefix(params domain.Params) string {
	if folder := params.String(domain.ParamFolder); folder != "" {
		return folder
	}
	return o.PullPrefix
}

// terminatorBase is the object base name that closes an export.
const terminatorBase = "terminator"

// IsTerminator reports whether a locator names the terminator object.
func IsTerminator(locator string) bool {
	base := path.Base(strings.ReplaceAll(locator, "%2F", "/"))
	return base == terminatorBase || strings.HasPrefix(base, terminatorBase+".")
}

// Ready reports whether locators contain a terminator.
func Ready(locators []string) bool {
	for _, l := range locators {
		if IsTerminator(l) {
			return true
		}
	}
	return false
}

// SortLocators orders locators so numbered batches come in numeric order
// (push_2 before push_10), other objects by name, and the terminator last.
func SortLocators(locators []string) []string {
	out := make([]string, len(locators))
	copy(out, locators)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := IsTerminator(out[i]), IsTerminator(out[j])
		if ti != tj {
			return tj
		}
		ni, oki := batchNumber(out[i])
		nj, okj := batchNumber(out[j])
		switch {
		case oki && okj:
			if ni != nj {
				return ni < nj
			}
		case oki != okj:
			return oki
		}
		return out[i] < out[j]
	})
	return out
}

func batchNumber(locator string) (int, bool) {
	base := path.Base(strings.ReplaceAll(locator, "%2F", "/"))
	if !strings.HasPrefix(base, "push_") {
		return 0, false
	}
	digits := strings.TrimPrefix(base, "push_")
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		digits = digits[:i]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Found finalises a WaitAction listing: sorted locators and readiness.
func Found(locators []string) ([]string, bool) {
	if !Ready(locators) {
		return nil, false
	}
	return SortLocators(locators), true
}
