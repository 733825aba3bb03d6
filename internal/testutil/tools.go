package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/jubilee/core"
)

// StubTool is a tool.Tool with a scripted implementation that records calls.
type StubTool struct {
	ToolName string
	Fn       func(toolCtx *core.ToolContext, args map[string]any) (any, error)

	calls atomic.Int32
	mu    sync.Mutex
	args  []map[string]any
}

// NewStubTool creates a stub; a nil fn returns "<name> ok".
func NewStubTool(name string, fn func(*core.ToolContext, map[string]any) (any, error)) *StubTool {
	if fn == nil {
		fn = func(*core.ToolContext, map[string]any) (any, error) { return name + " ok", nil }
	}
	return &StubTool{ToolName: name, Fn: fn}
}

// Name implements tool.Tool.
func (s *StubTool) Name() string { return s.ToolName }

// Description implements tool.Tool.
func (s *StubTool) Description() string { return "stub " + s.ToolName }

// Parameters implements tool.Tool.
func (s *StubTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Call implements tool.Tool.
func (s *StubTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.args = append(s.args, args)
	s.mu.Unlock()
	return s.Fn(toolCtx, args)
}

// Calls returns how often the stub was invoked.
func (s *StubTool) Calls() int { return int(s.calls.Load()) }

// Args returns the arguments of every invocation.
func (s *StubTool) Args() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.args...)
}
