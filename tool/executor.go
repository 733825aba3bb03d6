package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/logging"
)

// Call is a single tool invocation requested by a model.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Result is the data-level outcome of a Call. Exactly one of the following holds:
//   - Err == nil, Denied == false: Output carries the tool result
//   - Denied == true: Output carries the policy refusal string
//   - Err != nil: the call failed (not found, validation, execution, panic,
//     timeout or cancellation)
type Result struct {
	CallID   string
	Tool     string
	Output   string
	Err      error
	Denied   bool
	Duration time.Duration
}

// Failed reports whether the call failed (as opposed to succeeding or being denied).
func (r Result) Failed() bool { return r.Err != nil }

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Timeout bounds each tool call. Zero disables the per-call timeout.
	//
	// On timeout the executor returns a TIMEOUT result immediately but cannot
	// stop the tool's goroutine: tools must honour toolCtx.Context() to release
	// their resources once it is done.
	Timeout time.Duration
	// ToolTimeouts overrides Timeout per tool name. A negative value disables
	// the timeout for that tool.
	ToolTimeouts map[string]time.Duration
	// MaxParallel caps concurrent calls in ExecuteBatch. 0 means len(calls).
	MaxParallel int
	// Bindings attach pre-execution policies to tools.
	Bindings []Binding
}

// Executor invokes tools by name. It never panics and never returns an error
// to its caller: every failure is reported as data in Result.
type Executor struct {
	tools map[string]Tool
	order []Tool
	opts  ExecutorOptions
}

// NewExecutor creates an executor bound to tools.
func NewExecutor(tools []Tool, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	e := &Executor{tools: make(map[string]Tool, len(tools)), opts: opts}
	for _, t := range tools {
		if _, dup := e.tools[t.Name()]; dup {
			continue
		}
		e.tools[t.Name()] = t
		e.order = append(e.order, t)
	}
	return e
}

// WithTools returns an executor bound to a different tool set that shares
// this executor's options and policy bindings.
func (e *Executor) WithTools(tools []Tool) *Executor {
	opts := e.opts
	return NewExecutor(tools, func(o *ExecutorOptions) { *o = opts })
}

// Tools returns the bound tools in binding order.
func (e *Executor) Tools() []Tool { return append([]Tool(nil), e.order...) }

// Execute runs a single call through the policy pipeline and the tool.
func (e *Executor) Execute(runCtx *core.RunContext, call Call) Result {
	start := time.Now()
	res := e.execute(runCtx, call)
	res.CallID = call.ID
	res.Tool = call.Name
	res.Duration = time.Since(start)

	runCtx.LogDebug("tool.executed", "agent", runCtx.AgentName, "tool", call.Name, "call_id", call.ID)
	logging.LogToolCall(runCtx.Logger(), call.Name, res.Duration, res.Denied, res.Err)
	return res
}

// timeoutFor returns the call timeout of the named tool, 0 meaning none.
func (e *Executor) timeoutFor(name string) time.Duration {
	if d, ok := e.opts.ToolTimeouts[name]; ok {
		return max(d, 0)
	}
	return e.opts.Timeout
}

func (e *Executor) execute(runCtx *core.RunContext, call Call) Result {
	if err := runCtx.Err(); err != nil {
		return Result{Err: core.WrapError(core.KindCancellation, "tool.execute", err)}
	}

	impl, ok := e.tools[call.Name]
	if !ok {
		return Result{Err: NewToolError(call.Name, fmt.Sprintf("tool %s not found", call.Name), CodeNotFound)}
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	toolCtx := core.NewToolContext(runCtx, call.ID)

	for _, p := range policiesFor(e.opts.Bindings, call.Name) {
		d := evaluate(p, toolCtx, call.Name, args)
		if !d.Allow {
			runCtx.LogWarn("tool.policy.denied", "tool", call.Name, "policy", p.Name(), "reason", d.Reason)
			return Result{Output: d.Reason, Denied: true}
		}
	}

	return e.invoke(runCtx, toolCtx, impl, args)
}

// evaluate runs a policy and converts a panic into a denial.
func evaluate(p Policy, toolCtx *core.ToolContext, toolName string, args map[string]any) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			toolCtx.LogError("tool.policy.panic", "policy", p.Name(), "recover", r)
			d = Deny(fmt.Sprintf("⛔ POLICY FAILURE: %s could not evaluate the call.", p.Name()))
		}
	}()
	return p.Evaluate(toolCtx, toolName, args)
}

type outcome struct {
	result any
	err    error
}

func (e *Executor) invoke(runCtx *core.RunContext, toolCtx *core.ToolContext, impl Tool, args map[string]any) Result {
	ctx := runCtx.Context
	timeout := e.timeoutFor(impl.Name())
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tc := toolCtx.WithContext(ctx)

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				runCtx.LogError("tool.panic", "tool", impl.Name(), "recover", r, "stack", string(debug.Stack()))
				out = outcome{err: NewToolError(impl.Name(), fmt.Sprintf("panic: %v", r), CodePanic)}
			}
			done <- out
		}()
		res, err := impl.Call(tc, args)
		out = outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Result{Err: out.err}
		}
		return Result{Output: Stringify(out.result)}
	case <-ctx.Done():
		if err := runCtx.Err(); err != nil {
			return Result{Err: core.WrapError(core.KindCancellation, "tool.execute", err)}
		}
		return Result{Err: NewToolError(impl.Name(), fmt.Sprintf("timed out after %s", timeout), CodeTimeout)}
	}
}

// ExecuteBatch runs independent calls concurrently and returns their results
// in request order.
func (e *Executor) ExecuteBatch(runCtx *core.RunContext, calls []Call) []Result {
	n := len(calls)
	results := make([]Result, n)
	if n == 0 {
		return results
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.Execute(runCtx, calls[0])
		return results
	}

	maxPar := e.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, c Call) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.Execute(runCtx, c)
		}(i, calls[i])
	}
	wg.Wait()

	runCtx.LogDebug(
		"tool.batch.complete",
		"agent", runCtx.AgentName,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return results
}

// Stringify renders a tool result as the text fed back to the model.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
