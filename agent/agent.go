package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hupe1980/jubilee/agent"

// Options configures an Agent.
//
// Use functional options with New to override defaults.
type Options struct {
	Instruction Instruction
	Tools       []tool.Tool
	// Executor carries policy bindings and the tool timeout. It is re-bound
	// to Tools; when nil a plain executor using ToolTimeout is created.
	Executor        *tool.Executor
	MaxIterations   int
	ModelTimeout    time.Duration
	ToolTimeout     time.Duration
	RunTimeout      time.Duration
	ParallelTools   bool
	EventBufferSize int
	Logger          logging.Logger
	Tracer          trace.Tracer
}

// Agent is one reasoning/acting loop bound to a model, a system prompt and a
// tool set. An Agent holds no per-run state and may serve concurrent runs.
type Agent struct {
	name        string
	llm         model.Model
	instruction Instruction
	exec        *tool.Executor
	opts        Options
}

var _ core.Agent = (*Agent)(nil)

// New creates an agent with sensible defaults:
//   - 10 iterations
//   - 2 minute model timeout, 60 second tool timeout, no run timeout
//   - sequential tool dispatch
func New(name string, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:     NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxIterations:   10,
		ModelTimeout:    2 * time.Minute,
		ToolTimeout:     60 * time.Second,
		EventBufferSize: 16,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if opts.EventBufferSize < 0 {
		opts.EventBufferSize = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	exec := opts.Executor
	if exec == nil {
		exec = tool.NewExecutor(opts.Tools, func(o *tool.ExecutorOptions) { o.Timeout = opts.ToolTimeout })
	} else {
		exec = exec.WithTools(opts.Tools)
	}

	return &Agent{
		name:        name,
		llm:         llm,
		instruction: opts.Instruction,
		exec:        exec,
		opts:        opts,
	}
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Tools returns the tools bound to the agent.
func (a *Agent) Tools() []tool.Tool { return a.exec.Tools() }

// MaxIterations returns the configured iteration budget.
func (a *Agent) MaxIterations() int { return a.opts.MaxIterations }

// Run starts a run and returns its event stream. A nil history is treated as
// a fresh, empty one.
func (a *Agent) Run(ctx context.Context, query string, history *core.ChatHistory) <-chan core.Event {
	out := make(chan core.Event, a.opts.EventBufferSize)
	if history == nil {
		history = core.NewChatHistory()
	}
	go func() {
		defer close(out)
		a.run(ctx, query, history, out)
	}()
	return out
}

func (a *Agent) run(parent context.Context, query string, history *core.ChatHistory, out chan<- core.Event) {
	start := time.Now()

	ctx := parent
	if a.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, a.opts.RunTimeout)
		defer cancel()
	}

	ctx, span := a.opts.Tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", a.name),
		attribute.Int("agent.max_iterations", a.opts.MaxIterations),
		attribute.Int("agent.tools", len(a.exec.Tools())),
	))
	defer span.End()

	runID := core.NewID()
	runCtx := core.NewRunContext(ctx, runID, a.name, query, logging.ForRun(a.opts.Logger, runID))
	runCtx.LogInfo("agent.run.start", "agent", a.name, "run", runCtx.RunID, "model", a.llm.Info().Name)

	s := &runState{
		agent:   a,
		runCtx:  runCtx,
		out:     out,
		start:   start,
		query:   query,
		history: history,
		budget:  core.NewIterationBudget(a.opts.MaxIterations),
	}

	terminal := s.loop()
	terminal.RunID = runCtx.RunID

	span.SetAttributes(
		attribute.String("agent.terminal", string(terminal.Type)),
		attribute.Int("agent.iterations", s.budget.Count()),
	)
	if terminal.Type != core.EventDone {
		span.SetStatus(codes.Error, terminal.Message)
	}

	if terminal.Forced {
		runCtx.LogWarn("agent.run.forced", "agent", a.name, "iterations", s.budget.Count())
	}
	logging.LogRun(runCtx.Logger(), a.name, s.budget.Count(), time.Since(start), string(terminal.Type))

	// The terminal event is always delivered; callers drain the stream.
	out <- terminal

	if terminal.Type == core.EventDone {
		history.Append(
			core.Message{Role: core.RoleUser, Content: query},
			core.Message{Role: core.RoleAssistant, Content: terminal.Answer},
		)
	}
}

// runState is the IterationState of one run. It is discarded afterwards.
type runState struct {
	agent   *Agent
	runCtx  *core.RunContext
	out     chan<- core.Event
	start   time.Time
	query   string
	history *core.ChatHistory
	budget  *core.IterationBudget
	results strings.Builder
}

func (s *runState) loop() core.Event {
	instructions, err := s.agent.instruction.Resolve(s.runCtx)
	if err != nil {
		return core.NewErrorEvent(fmt.Sprintf("failed to resolve instructions: %v", err))
	}

	defs := tool.Definitions(s.agent.exec.Tools())
	prior := s.history.Messages()

	for {
		if s.runCtx.Err() != nil {
			return s.aborted()
		}
		if err := s.budget.Increment(); err != nil {
			break
		}
		iteration := s.budget.Count()
		s.runCtx.LogDebug("agent.iteration.start", "agent", s.agent.name, "iteration", iteration)

		prompt := iterationPrompt(s.query, s.results.String(), usageStatus(iteration, s.budget.Max()))
		resp, err := s.callModel(model.Request{
			Instructions:      instructions,
			Messages:          withTurn(prior, prompt),
			Tools:             defs,
			ParallelToolCalls: s.agent.opts.ParallelTools && len(defs) > 0,
		})
		if err != nil {
			return s.modelFailure(err)
		}

		if !resp.HasToolCalls() {
			return core.NewDoneEvent(resp.Text, iteration, time.Since(s.start), false)
		}

		if text := strings.TrimSpace(resp.Text); text != "" {
			if !s.emit(core.NewThinkingEvent(text)) {
				return s.aborted()
			}
		}
		if !s.dispatch(resp.ToolCalls) {
			return s.aborted()
		}
	}

	return s.finalAnswer(instructions, prior)
}

// finalAnswer runs the forced final-answer pass after the budget is spent.
func (s *runState) finalAnswer(instructions string, prior []core.Message) core.Event {
	if s.runCtx.Err() != nil {
		return s.aborted()
	}
	s.runCtx.LogWarn("agent.iteration.budget_exhausted", "agent", s.agent.name, "max", s.budget.Max())

	resp, err := s.callModel(model.Request{
		Instructions: instructions,
		Messages:     withTurn(prior, finalAnswerPrompt(s.query, s.results.String())),
	})
	if err != nil {
		return s.modelFailure(err)
	}

	answer := resp.Text
	if strings.TrimSpace(answer) == "" {
		answer = "I could not reach a final answer within the iteration budget."
	}
	return core.NewDoneEvent(answer, s.budget.Count(), time.Since(s.start), true)
}

func (s *runState) callModel(req model.Request) (model.Response, error) {
	ctx := s.runCtx.Context
	timeout := s.agent.opts.ModelTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := model.Collect(ctx, s.agent.llm, req)

	logging.LogModelCall(s.runCtx.Logger(), s.agent.llm.Info().Name, len(resp.ToolCalls), time.Since(start), err)

	if err != nil && s.runCtx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("model call timed out after %s: %w", timeout, err)
	}
	return resp, err
}

// modelFailure maps a model error to the terminal event.
func (s *runState) modelFailure(err error) core.Event {
	if s.runCtx.Err() != nil {
		return s.aborted()
	}
	s.runCtx.LogError("agent.model.error", "agent", s.agent.name, "error", err.Error())

	if model.IsAuthError(err) {
		return core.NewErrorEvent(AuthErrorMessage)
	}
	return core.NewErrorEvent(fmt.Sprintf("Model call failed: %v", err))
}

func (s *runState) aborted() core.Event {
	reason := "run cancelled"
	if errors.Is(s.runCtx.Err(), context.DeadlineExceeded) {
		reason = "run timed out"
	}
	s.runCtx.LogWarn("agent.run.aborted", "agent", s.agent.name, "reason", reason)
	return core.NewAbortedEvent(reason)
}

// emit delivers a non-terminal event unless the run is cancelled.
func (s *runState) emit(ev core.Event) bool {
	ev.RunID = s.runCtx.RunID
	select {
	case <-s.runCtx.Done():
		return false
	case s.out <- ev:
		return true
	}
}

// dispatch runs one turn of tool calls and appends their results, in request
// order, to the accumulated context. It returns false if the run was
// cancelled meanwhile.
func (s *runState) dispatch(requested []model.ToolCall) bool {
	calls := make([]tool.Call, len(requested))
	invalid := make([]error, len(requested))
	for i, tc := range requested {
		id := tc.ID
		if id == "" {
			id = core.NewID()
		}
		args, err := tc.Args()
		invalid[i] = err
		calls[i] = tool.Call{ID: id, Name: tc.Name, Args: args}
	}

	invalidResult := func(i int) tool.Result {
		return tool.Result{
			CallID: calls[i].ID,
			Tool:   calls[i].Name,
			Err:    tool.NewToolError(calls[i].Name, fmt.Sprintf("invalid arguments: %v", invalid[i]), tool.CodeInvalidPayload),
		}
	}

	if s.agent.opts.ParallelTools && len(calls) > 1 {
		for _, c := range calls {
			if !s.emit(core.NewToolStartEvent(c.ID, c.Name, c.Args)) {
				return false
			}
		}

		var (
			valid []tool.Call
			index []int
		)
		for i, c := range calls {
			if invalid[i] == nil {
				valid = append(valid, c)
				index = append(index, i)
			}
		}
		batch := s.agent.exec.ExecuteBatch(s.runCtx, valid)

		results := make([]tool.Result, len(calls))
		for i := range calls {
			if invalid[i] != nil {
				results[i] = invalidResult(i)
			}
		}
		for j, r := range batch {
			results[index[j]] = r
		}
		for i, r := range results {
			if !s.record(r, requested[i].Arguments) {
				return false
			}
		}
		return s.runCtx.Err() == nil
	}

	for i, c := range calls {
		if !s.emit(core.NewToolStartEvent(c.ID, c.Name, c.Args)) {
			return false
		}
		var res tool.Result
		if invalid[i] != nil {
			res = invalidResult(i)
		} else {
			res = s.agent.exec.Execute(s.runCtx, c)
		}
		if !s.record(res, requested[i].Arguments) {
			return false
		}
		if s.runCtx.Err() != nil {
			return false
		}
	}
	return true
}

// record emits tool_end or tool_error and appends the result as data.
func (s *runState) record(res tool.Result, rawArgs string) bool {
	var (
		ev   core.Event
		text string
	)
	if res.Err != nil {
		text = res.Err.Error()
		ev = core.NewToolErrorEvent(res.CallID, res.Tool, text)
	} else {
		text = res.Output
		ev = core.NewToolEndEvent(res.CallID, res.Tool, text)
	}
	s.results.WriteString(formatToolResult(res.Tool, rawArgs, text, res.Err != nil))
	return s.emit(ev)
}

func withTurn(prior []core.Message, prompt string) []core.Message {
	msgs := make([]core.Message, 0, len(prior)+1)
	msgs = append(msgs, prior...)
	return append(msgs, core.Message{Role: core.RoleUser, Content: prompt})
}
