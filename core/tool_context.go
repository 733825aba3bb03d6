package core

import (
	"context"

	"github.com/hupe1980/jubilee/logging"
)

// ToolContext is the constrained surface handed to tool implementations and
// pre-execution policies. It exposes the call's context (bounded by the tool
// timeout), identifiers and the latest user utterance.
type ToolContext struct {
	runCtx *RunContext
	ctx    context.Context
	callID string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and call id.
func NewToolContext(runCtx *RunContext, callID string) *ToolContext {
	if runCtx == nil {
		runCtx = NewRunContext(context.Background(), "", "", "", nil)
	}
	return &ToolContext{
		runCtx:        runCtx,
		ctx:           runCtx.Context,
		callID:        callID,
		loggerAdapter: runCtx.loggerAdapter,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// WithContext returns a copy of the tool context bound to ctx.
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	nc := *tc
	nc.ctx = ctx
	return &nc
}

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// CallID returns the model-assigned identifier of this tool call.
func (tc *ToolContext) CallID() string { return tc.callID }

// AgentName returns the name of the calling agent.
func (tc *ToolContext) AgentName() string { return tc.runCtx.AgentName }

// UserUtterance returns the most recent user message of the run.
func (tc *ToolContext) UserUtterance() string { return tc.runCtx.UserUtterance }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// RunContext returns the parent run context.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }
