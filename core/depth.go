package core

import "context"

type dispatchDepthKey struct{}

// WithDispatchDepth returns a context recording how many nested dispatches
// led to the work running under it.
func WithDispatchDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, dispatchDepthKey{}, depth)
}

// DispatchDepth returns the nesting depth carried by ctx, 0 at the top level.
func DispatchDepth(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	depth, _ := ctx.Value(dispatchDepthKey{}).(int)
	return depth
}

// Depth returns the dispatch depth of the run.
func (rc *RunContext) Depth() int { return DispatchDepth(rc.Context) }
