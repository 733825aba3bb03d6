// Package jubilee assembles the runtime: a capability registry populated with
// the domain tools, the policy-bound tool executor, the SafetyGuard, the
// angel dispatcher, the Triune orchestrator and a session-scoped runner.
//
// Most applications create a Jubilee via New (or NewFromConfig) and then
//  1. ask the Triune (Ask),
//  2. talk to a single tool-using agent (Converse), or
//  3. dispatch an angel directly (Dispatch).
package jubilee

import (
	"context"
	"time"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/angel"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/guard"
	"github.com/hupe1980/jubilee/internal/util"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/memory"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/onchain"
	"github.com/hupe1980/jubilee/policy"
	"github.com/hupe1980/jubilee/runner"
	"github.com/hupe1980/jubilee/session"
	"github.com/hupe1980/jubilee/shell"
	"github.com/hupe1980/jubilee/skills"
	"github.com/hupe1980/jubilee/task"
	"github.com/hupe1980/jubilee/tool"
	"github.com/hupe1980/jubilee/triune"
)

// Registered agent names.
const (
	TriuneAgent = "Triune"
	ChatAgent   = "Jubilee"
)

const chatInstruction = `You are Jubilee, a steward agent. Today is {{.date}}.
Use your tools to gather facts before answering. Delegate specialised work to an angel with dispatch_angel.
Never move funds unless the user explicitly asked for it.`

// Options configures a Jubilee instance. Unset stores default to in-memory
// implementations; unset optional components disable their tools.
type Options struct {
	// GuardModel runs the SafetyGuard. Defaults to the main model.
	GuardModel    model.Model
	GuardPolicies guard.Policies
	GuardTimeout  time.Duration
	// Guard replaces the model-backed guard entirely.
	Guard guard.Checker

	Roles             angel.Roles
	Modes             angel.Modes
	MaxDepth          int
	Lenient           bool
	DefaultIterations int

	Tasks    task.Store
	Memory   memory.Store
	Sessions session.Store
	Skills   *skills.Library

	// Allowlist guards transfer and trade tools. A nil allowlist denies every transfer.
	Allowlist         *policy.Allowlist
	ConfirmationToken string
	// Treasury enables get_balance and transfer_funds.
	Treasury *onchain.Treasury
	// Shell enables code_exec.
	Shell *shell.Executor
	// Tools are registered in addition to the built-in ones.
	Tools []tool.Tool

	// AgentOptions apply to every agent the runtime builds.
	AgentOptions []func(o *agent.Options)
	// ToolTimeout bounds every tool call except dispatch_angel.
	ToolTimeout       time.Duration
	MaxConcurrentRuns int
	RunTimeout        time.Duration
	// Events receives side-channel events of Triune analysts and angels.
	Events chan<- core.Event
	Logger logging.Logger
}

// Jubilee is the assembled runtime.
type Jubilee struct {
	Registry   *tool.Registry
	Executor   *tool.Executor
	Guard      guard.Checker
	Dispatcher *angel.Dispatcher
	Triune     *triune.Orchestrator
	Chat       *agent.Agent
	Runner     *runner.Runner
}

// New assembles the runtime around llm.
func New(llm model.Model, optFns ...func(o *Options)) (*Jubilee, error) {
	opts := Options{
		Tasks:    task.NewMemoryStore(),
		Memory:   memory.NewInMemoryStore(),
		Sessions: session.NewInMemoryStore(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Allowlist == nil {
		opts.Allowlist = policy.NewAllowlist()
	}
	if opts.Skills == nil {
		opts.Skills = skills.NewLibrary()
	}

	checker := opts.Guard
	if checker == nil {
		gm := opts.GuardModel
		if gm == nil {
			gm = llm
		}
		checker = guard.New(gm, opts.GuardPolicies, func(o *guard.Options) {
			if opts.GuardTimeout > 0 {
				o.Timeout = opts.GuardTimeout
			}
			o.Logger = logging.Component(opts.Logger, "guard")
		})
	}

	exec := tool.NewExecutor(nil, func(o *tool.ExecutorOptions) {
		o.Timeout = opts.ToolTimeout
		// An angel runs a whole agent loop bounded by its own iteration budget,
		// model timeouts and the run timeout.
		o.ToolTimeouts = map[string]time.Duration{string(tool.CapDispatchAngel): -1}
		o.Bindings = []tool.Binding{
			tool.Bind(tool.MatchContains("transfer", "trade"), policy.NewAllowlistPolicy(opts.Allowlist)),
			tool.Bind(tool.MatchNames(string(tool.CapCodeExec)), policy.NewConfirmationPolicy(opts.ConfirmationToken)),
		}
	})

	registry := tool.NewRegistry()
	builtins := []tool.Tool{
		memory.NewRememberTool(opts.Memory, checker),
		memory.NewRecallTool(opts.Memory),
		task.NewContextTool(opts.Tasks),
	}
	if opts.Skills.Len() > 0 {
		builtins = append(builtins, skills.NewTool(opts.Skills))
	}
	if opts.Treasury != nil {
		builtins = append(builtins, onchain.NewBalanceTool(opts.Treasury), onchain.NewTransferTool(opts.Treasury))
	}
	if opts.Shell != nil {
		builtins = append(builtins, shell.NewTool(opts.Shell))
	}
	for _, t := range append(builtins, opts.Tools...) {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	agentOpts := append([]func(o *agent.Options){func(o *agent.Options) {
		o.Executor = exec
		o.Logger = logging.Component(opts.Logger, "agent")
	}}, opts.AgentOptions...)

	dispatcher := angel.New(llm, registry, checker, opts.Roles, func(o *angel.Options) {
		o.Modes = opts.Modes
		o.MaxDepth = opts.MaxDepth
		o.Lenient = opts.Lenient
		o.DefaultIterations = opts.DefaultIterations
		o.Tasks = opts.Tasks
		o.Skills = opts.Skills
		o.Executor = exec
		o.Events = opts.Events
		o.Logger = logging.Component(opts.Logger, "angel")
		o.AgentFactory = func(spec angel.AgentSpec) core.Agent {
			fns := append(append([]func(o *agent.Options){}, agentOpts...), func(o *agent.Options) {
				o.Instruction = agent.NewInstructionFromText(spec.Instruction)
				o.Tools = spec.Tools
				o.MaxIterations = spec.MaxIterations
			})
			return agent.New(spec.Name, llm, fns...)
		}
	})
	if err := registry.Register(angel.NewDispatchTool(dispatcher)); err != nil {
		return nil, err
	}

	orchestrator := triune.New(llm, registry, func(o *triune.Options) {
		o.AgentOptions = agentOpts
		o.Events = opts.Events
		o.Logger = logging.Component(opts.Logger, "triune")
	})

	chat := agent.New(ChatAgent, llm, append(append([]func(o *agent.Options){}, agentOpts...), func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromFunc(func(*core.RunContext) (string, error) {
			return util.RenderTemplate(chatInstruction, map[string]any{"date": agent.CurrentDate(time.Now())})
		})
		o.Tools = registry.ToolsForRole(tool.RoleWill)
	})...)

	r := runner.New(func(o *runner.Options) {
		o.Sessions = opts.Sessions
		o.Logger = logging.Component(opts.Logger, "runner")
		o.RunTimeout = opts.RunTimeout
		if opts.MaxConcurrentRuns > 0 {
			o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		}
	})
	r.Register(orchestrator, chat)

	return &Jubilee{
		Registry:   registry,
		Executor:   exec,
		Guard:      checker,
		Dispatcher: dispatcher,
		Triune:     orchestrator,
		Chat:       chat,
		Runner:     r,
	}, nil
}

// Ask runs the Triune on the session's history.
func (j *Jubilee) Ask(ctx context.Context, sessionID, query string) (string, <-chan core.Event, error) {
	return j.Runner.Run(ctx, sessionID, TriuneAgent, query)
}

// Converse runs the single tool-using agent on the session's history.
func (j *Jubilee) Converse(ctx context.Context, sessionID, query string) (string, <-chan core.Event, error) {
	return j.Runner.Run(ctx, sessionID, ChatAgent, query)
}

// Dispatch runs one angel mission outside any session.
func (j *Jubilee) Dispatch(ctx context.Context, m angel.Mission) string {
	return j.Dispatcher.Dispatch(ctx, m)
}
