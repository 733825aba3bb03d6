package agent

import (
	"time"

	"github.com/hupe1980/jubilee/core"
)

// Result summarizes a finished run.
type Result struct {
	Answer     string
	Iterations int
	TotalTime  time.Duration
	Forced     bool
	Terminal   core.Event
}

// Err returns nil when the run ended with done. An error terminal maps to a
// ModelError, aborted to a CancellationError.
func (r Result) Err() error {
	switch r.Terminal.Type {
	case core.EventDone:
		return nil
	case core.EventAborted:
		return core.NewError(core.KindCancellation, "agent.run", r.Terminal.Message)
	case core.EventError:
		return core.NewError(core.KindModel, "agent.run", r.Terminal.Message)
	default:
		return core.NewError(core.KindModel, "agent.run", "stream closed without a terminal event")
	}
}

// Collect drains events until the stream is closed and returns the outcome.
// onEvent, when non-nil, observes every event in order.
func Collect(events <-chan core.Event, onEvent func(core.Event)) Result {
	var res Result
	for ev := range events {
		if onEvent != nil {
			onEvent(ev)
		}
		if !ev.IsTerminal() {
			continue
		}
		res.Terminal = ev
		if ev.Type == core.EventDone {
			res.Answer = ev.Answer
			res.Iterations = ev.Iterations
			res.TotalTime = time.Duration(ev.TotalTimeMs) * time.Millisecond
			res.Forced = ev.Forced
		}
	}
	return res
}
