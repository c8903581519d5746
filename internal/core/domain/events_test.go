package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_String(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"name only", Event{Name: EventSyncCompleted}, "SYNC_COMPLETED"},
		{"message", Event{Name: EventStartingPull, Message: "waiting"}, "STARTING_PULL: waiting"},
		{"model", Event{Name: EventNoRecordMapping, Model: "Order"}, "NO_RECORD_MAPPING [Order]"},
		{
			"poll",
			Event{Name: EventWaitNewPoll, Attempt: 3, Interval: 4 * time.Second},
			"WAIT_EVENT_NEW_POLL attempt 3 (waited 4s)",
		},
		{
			"error",
			Event{Name: EventPullFailed, Message: "download", Err: errors.New("boom")},
			"PULL_FAILED: download (boom)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.String())
		})
	}
}
