package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the AgentEvent variants.
type EventType string

const (
	// EventThinking carries interim model reasoning or orchestration progress.
	EventThinking EventType = "thinking"
	// EventToolStart is emitted before a tool call is dispatched.
	EventToolStart EventType = "tool_start"
	// EventToolEnd carries a tool result (including policy refusals).
	EventToolEnd EventType = "tool_end"
	// EventToolError carries a tool failure that was converted to data.
	EventToolError EventType = "tool_error"
	// EventDone is the successful terminal event.
	EventDone EventType = "done"
	// EventError is the fatal terminal event.
	EventError EventType = "error"
	// EventAborted is the terminal event for cancellation and run timeouts.
	EventAborted EventType = "aborted"
)

// Event is the unit streamed from an agent run to its caller. After emission
// it must be treated as immutable. Only the fields relevant to Type are set:
//
//	thinking   -> Message
//	tool_start -> Tool, CallID, Input
//	tool_end   -> Tool, CallID, Result
//	tool_error -> Tool, CallID, Error
//	done       -> Answer, Iterations, TotalTimeMs, Forced
//	error      -> Message
//	aborted    -> Message
//
// Source names the producing agent when events are multiplexed (for example
// on an orchestration side-channel).
type Event struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id,omitempty"`
	Source      string         `json:"source,omitempty"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Message     string         `json:"message,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	CallID      string         `json:"call_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Answer      string         `json:"answer,omitempty"`
	Iterations  int            `json:"iterations,omitempty"`
	TotalTimeMs int64          `json:"total_time_ms,omitempty"`
	Forced      bool           `json:"forced,omitempty"`
}

func newEvent(t EventType) Event {
	return Event{ID: NewID(), Type: t, Timestamp: time.Now().UTC()}
}

// NewThinkingEvent creates a thinking{message} event.
func NewThinkingEvent(message string) Event {
	e := newEvent(EventThinking)
	e.Message = message
	return e
}

// NewToolStartEvent creates a tool_start{tool, input} event.
func NewToolStartEvent(callID, tool string, input map[string]any) Event {
	e := newEvent(EventToolStart)
	e.CallID = callID
	e.Tool = tool
	e.Input = input
	return e
}

// NewToolEndEvent creates a tool_end{tool, result} event.
func NewToolEndEvent(callID, tool, result string) Event {
	e := newEvent(EventToolEnd)
	e.CallID = callID
	e.Tool = tool
	e.Result = result
	return e
}

// NewToolErrorEvent creates a tool_error{tool, error} event.
func NewToolErrorEvent(callID, tool, errMsg string) Event {
	e := newEvent(EventToolError)
	e.CallID = callID
	e.Tool = tool
	e.Error = errMsg
	return e
}

// NewDoneEvent creates the successful terminal event. forced marks an answer
// produced by the final-answer pass after the iteration budget ran out.
func NewDoneEvent(answer string, iterations int, totalTime time.Duration, forced bool) Event {
	e := newEvent(EventDone)
	e.Answer = answer
	e.Iterations = iterations
	e.TotalTimeMs = totalTime.Milliseconds()
	e.Forced = forced
	return e
}

// NewErrorEvent creates the fatal terminal event.
func NewErrorEvent(message string) Event {
	e := newEvent(EventError)
	e.Message = message
	return e
}

// NewAbortedEvent creates the cancellation terminal event.
func NewAbortedEvent(reason string) Event {
	e := newEvent(EventAborted)
	e.Message = reason
	return e
}

// NewID generates a new unique identifier for runs, events and records.
func NewID() string { return uuid.NewString() }

// IsTerminal reports whether the event ends a run.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case EventDone, EventError, EventAborted:
		return true
	default:
		return false
	}
}

// WithSource returns a copy of the event tagged with the producing agent.
func (e Event) WithSource(source string) Event {
	e.Source = source
	return e
}
