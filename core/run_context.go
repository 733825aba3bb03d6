package core

import (
	"context"

	"github.com/hupe1980/jubilee/logging"
)

// RunContext carries the per-run execution scope of one agent loop:
//   - the ambient cancellation Context
//   - identifiers (RunID, AgentName)
//   - the latest user utterance, consulted by confirmation policies
//   - a logger
//
// A RunContext is never shared between concurrent runs.
type RunContext struct {
	Context       context.Context
	RunID         string
	AgentName     string
	UserUtterance string

	*loggerAdapter
}

type userUtteranceKey struct{}

// WithUserUtterance returns a context carrying the message of the user who
// started the outermost run.
func WithUserUtterance(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, userUtteranceKey{}, text)
}

// UserUtteranceFrom returns the user message carried by ctx, if any.
func UserUtteranceFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	text, ok := ctx.Value(userUtteranceKey{}).(string)
	return text, ok
}

// NewRunContext constructs a RunContext. A nil logger is replaced by a no-op logger.
//
// The first run on a context records userUtterance in it. Nested runs (angels
// dispatched from a tool call) inherit that utterance and ignore their own
// query, which was written by a model and not by the user.
func NewRunContext(ctx context.Context, runID, agentName, userUtterance string, logger logging.Logger) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if outer, ok := UserUtteranceFrom(ctx); ok {
		userUtterance = outer
	} else {
		ctx = WithUserUtterance(ctx, userUtterance)
	}
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		AgentName:     agentName,
		UserUtterance: userUtterance,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// WithContext returns a shallow copy bound to ctx.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	nc := *rc
	nc.Context = ctx
	return &nc
}
