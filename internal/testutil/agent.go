package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/jubilee/core"
)

// ScriptedAgent is a core.Agent that replays a fixed event sequence. When
// Block is set it waits for cancellation and ends with an aborted event.
type ScriptedAgent struct {
	AgentName string
	Events    []core.Event
	Block     bool

	mu      sync.Mutex
	queries []string
}

var _ core.Agent = (*ScriptedAgent)(nil)

// NewAnsweringAgent returns an agent that finishes with answer after iterations.
func NewAnsweringAgent(name, answer string, iterations int) *ScriptedAgent {
	return &ScriptedAgent{
		AgentName: name,
		Events: []core.Event{
			core.NewThinkingEvent(name + " is thinking"),
			core.NewDoneEvent(answer, iterations, 0, false),
		},
	}
}

// NewFailingAgent returns an agent that ends with an error event.
func NewFailingAgent(name, message string) *ScriptedAgent {
	return &ScriptedAgent{AgentName: name, Events: []core.Event{core.NewErrorEvent(message)}}
}

// Name implements core.Agent.
func (a *ScriptedAgent) Name() string { return a.AgentName }

// Run implements core.Agent.
func (a *ScriptedAgent) Run(ctx context.Context, query string, _ *core.ChatHistory) <-chan core.Event {
	a.mu.Lock()
	a.queries = append(a.queries, query)
	a.mu.Unlock()

	out := make(chan core.Event)
	go func() {
		defer close(out)
		if a.Block {
			<-ctx.Done()
			out <- core.NewAbortedEvent("run cancelled")
			return
		}
		for _, ev := range a.Events {
			if ev.IsTerminal() {
				out <- ev
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				out <- core.NewAbortedEvent("run cancelled")
				return
			}
		}
	}()
	return out
}

// Queries returns the query of every run.
func (a *ScriptedAgent) Queries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.queries...)
}
