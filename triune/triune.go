// Package triune runs the three-phase Triune orchestration. The Mind and the
// Prophet analyze a query concurrently on fresh histories; once both have
// answered, the Will synthesizes their reports on the caller's history and
// its event stream is forwarded to the caller.
package triune

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Phase messages emitted as thinking events.
const (
	MsgSummoning    = "Summoning The Mind and The Prophet..."
	MsgAnalyzing    = "The Mind and The Prophet are analyzing in parallel..."
	MsgSynthesizing = "The Will is synthesizing the reports..."
)

// Side-channel source tags.
const (
	SourceMind    = "mind"
	SourceProphet = "prophet"
)

// AgentFactory constructs the agent of one phase.
type AgentFactory func(role tool.Role, instruction string, tools []tool.Tool) core.Agent

// Options configures an Orchestrator.
type Options struct {
	AgentFactory  AgentFactory
	MindPrompt    PromptBuilder
	ProphetPrompt PromptBuilder
	WillPrompt    WillPromptBuilder
	// Suffix returns the decoration appended to the final answer.
	Suffix func() string
	// Events, when set, receives the Mind's and Prophet's events tagged with
	// their source. The forwarded stream is unaffected.
	Events chan<- core.Event
	// AgentOptions are applied to agents built by the default factory.
	AgentOptions    []func(o *agent.Options)
	EventBufferSize int
	Logger          logging.Logger
	Tracer          trace.Tracer
}

// Orchestrator runs the Triune. It holds no per-run state.
type Orchestrator struct {
	registry *tool.Registry
	opts     Options
}

var _ core.Agent = (*Orchestrator)(nil)

// New creates an orchestrator drawing phase tools from registry. Agents run
// on llm unless opts.AgentFactory is set.
func New(llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MindPrompt:      MindPrompt,
		ProphetPrompt:   ProphetPrompt,
		WillPrompt:      WillPrompt,
		Suffix:          RandomVerse(DefaultVerses),
		EventBufferSize: 16,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/jubilee/triune")
	}
	if opts.Suffix == nil {
		opts.Suffix = func() string { return "" }
	}
	if opts.AgentFactory == nil {
		opts.AgentFactory = defaultFactory(llm, opts)
	}
	return &Orchestrator{registry: registry, opts: opts}
}

func defaultFactory(llm model.Model, opts Options) AgentFactory {
	names := map[tool.Role]string{
		tool.RoleMind:    "The Mind",
		tool.RoleProphet: "The Prophet",
		tool.RoleWill:    "The Will",
	}
	return func(role tool.Role, instruction string, tools []tool.Tool) core.Agent {
		fns := append([]func(o *agent.Options){func(o *agent.Options) {
			o.Logger = opts.Logger
		}}, opts.AgentOptions...)
		fns = append(fns, func(o *agent.Options) {
			o.Instruction = agent.NewInstructionFromText(instruction)
			o.Tools = tools
		})
		return agent.New(names[role], llm, fns...)
	}
}

// Name implements core.Agent.
func (o *Orchestrator) Name() string { return "Triune" }

// Run implements core.Agent. The stream ends with exactly one terminal event.
func (o *Orchestrator) Run(ctx context.Context, query string, history *core.ChatHistory) <-chan core.Event {
	out := make(chan core.Event, o.opts.EventBufferSize)
	if history == nil {
		history = core.NewChatHistory()
	}
	go func() {
		defer close(out)
		o.run(ctx, query, history, out)
	}()
	return out
}

type report struct {
	answer     string
	iterations int
}

func (o *Orchestrator) run(ctx context.Context, query string, history *core.ChatHistory, out chan<- core.Event) {
	start := time.Now()
	runID := core.NewID()
	log := o.opts.Logger

	ctx, span := o.opts.Tracer.Start(ctx, "triune.run", trace.WithAttributes(attribute.String("triune.run_id", runID)))
	defer span.End()

	stamp := func(ev core.Event) core.Event {
		if ev.RunID == "" {
			ev.RunID = runID
		}
		return ev
	}
	emit := func(ev core.Event) bool {
		ev = stamp(ev)
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	terminate := func(ev core.Event) {
		ev = stamp(ev)
		span.SetAttributes(attribute.String("triune.terminal", string(ev.Type)))
		if ev.Type != core.EventDone {
			span.SetStatus(codes.Error, ev.Message)
		}
		out <- ev
	}
	aborted := func() core.Event {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return core.NewAbortedEvent("run timed out")
		}
		return core.NewAbortedEvent("run cancelled")
	}

	log.Info("triune.run.start", "run", runID)

	// Phase 1: fan-out.
	if !emit(core.NewThinkingEvent(MsgSummoning)) {
		terminate(aborted())
		return
	}
	mindTools := o.registry.ToolsForRole(tool.RoleMind)
	prophetTools := o.registry.ToolsForRole(tool.RoleProphet)

	mindPrompt, err := o.opts.MindPrompt(mindTools)
	if err != nil {
		terminate(core.NewErrorEvent(fmt.Sprintf("failed to build The Mind's prompt: %v", err)))
		return
	}
	prophetPrompt, err := o.opts.ProphetPrompt(prophetTools)
	if err != nil {
		terminate(core.NewErrorEvent(fmt.Sprintf("failed to build The Prophet's prompt: %v", err)))
		return
	}
	mind := o.opts.AgentFactory(tool.RoleMind, mindPrompt, mindTools)
	prophet := o.opts.AgentFactory(tool.RoleProphet, prophetPrompt, prophetTools)

	if !emit(core.NewThinkingEvent(MsgAnalyzing)) {
		terminate(aborted())
		return
	}

	var mindReport, prophetReport report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := o.analyze(gctx, mind, "The Mind", SourceMind, query)
		mindReport = r
		return err
	})
	g.Go(func() error {
		r, err := o.analyze(gctx, prophet, "The Prophet", SourceProphet, query)
		prophetReport = r
		return err
	})

	// Phase 2: barrier.
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			terminate(aborted())
			return
		}
		log.Error("triune.phase1.failed", "run", runID, "error", err.Error())
		terminate(core.NewErrorEvent(fmt.Sprintf("Triune orchestration failed: %v", err)))
		return
	}
	log.Info("triune.phase1.complete",
		"run", runID,
		"mind_iterations", mindReport.iterations,
		"prophet_iterations", prophetReport.iterations,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// Phase 3: synthesis.
	if !emit(core.NewThinkingEvent(MsgSynthesizing)) {
		terminate(aborted())
		return
	}
	willTools := o.registry.ToolsForRole(tool.RoleWill)
	willPrompt, err := o.opts.WillPrompt(mindReport.answer, prophetReport.answer, willTools)
	if err != nil {
		terminate(core.NewErrorEvent(fmt.Sprintf("failed to build The Will's prompt: %v", err)))
		return
	}
	will := o.opts.AgentFactory(tool.RoleWill, willPrompt, willTools)

	terminated := false
	for ev := range will.Run(ctx, query, history) {
		if terminated {
			continue
		}
		if !ev.IsTerminal() {
			emit(ev)
			continue
		}
		if ev.Type == core.EventDone {
			ev.Iterations += mindReport.iterations + prophetReport.iterations
			ev.TotalTimeMs = time.Since(start).Milliseconds()
			ev.Answer = decorate(ev.Answer, o.opts.Suffix())
		}
		log.Info("triune.run.complete",
			"run", runID,
			"terminal", string(ev.Type),
			"iterations", ev.Iterations,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		terminate(ev)
		terminated = true
	}
	if !terminated {
		terminate(core.NewErrorEvent("The Will ended without a final answer"))
	}
}

// analyze runs one phase-1 agent to completion on a fresh history.
func (o *Orchestrator) analyze(ctx context.Context, a core.Agent, title, source string, query string) (report, error) {
	var forward func(core.Event)
	if o.opts.Events != nil {
		forward = func(ev core.Event) {
			select {
			case o.opts.Events <- ev.WithSource(source):
			case <-ctx.Done():
			}
		}
	}
	res := agent.Collect(a.Run(ctx, query, core.NewChatHistory()), forward)
	if err := res.Err(); err != nil {
		return report{}, fmt.Errorf("%s failed: %s", title, res.Terminal.Message)
	}
	return report{answer: res.Answer, iterations: res.Iterations}, nil
}
