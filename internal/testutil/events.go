package testutil

import (
	"testing"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Drain reads ch until it is closed, failing the test after timeout.
func Drain(t testing.TB, ch <-chan core.Event, timeout time.Duration) []core.Event {
	t.Helper()
	var events []core.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			require.FailNow(t, "event stream not closed in time", "received %d events", len(events))
			return events
		}
	}
}

// Types projects events to their types.
func Types(events []core.Event) []core.EventType {
	out := make([]core.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// OfType filters events by type.
func OfType(events []core.Event, t core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Terminal asserts that exactly one terminal event exists and that it is the
// last element, then returns it.
func Terminal(t testing.TB, events []core.Event) core.Event {
	t.Helper()
	require.NotEmpty(t, events, "empty event stream")
	count := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			count++
		}
	}
	require.Equal(t, 1, count, "expected exactly one terminal event, got %v", Types(events))
	last := events[len(events)-1]
	require.True(t, last.IsTerminal(), "terminal event is not last: %v", Types(events))
	return last
}

// AssertToolPairing asserts that every tool_start is followed by exactly one
// matching tool_end or tool_error and that completions arrive in the order
// the calls were started.
func AssertToolPairing(t testing.TB, events []core.Event) {
	t.Helper()
	var started, finished []string
	for _, ev := range events {
		switch ev.Type {
		case core.EventToolStart:
			started = append(started, ev.CallID)
		case core.EventToolEnd, core.EventToolError:
			assert.Contains(t, started, ev.CallID, "completion without start for %s", ev.CallID)
			finished = append(finished, ev.CallID)
		}
	}
	assert.Equal(t, started, finished, "tool completions out of request order")
}
