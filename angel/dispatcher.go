package angel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/guard"
	"github.com/hupe1980/jubilee/logging"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/task"
	"github.com/hupe1980/jubilee/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxDepth bounds nested dispatches.
	DefaultMaxDepth = 3
	// DefaultIterations is the budget of missions without role or explicit budget.
	DefaultIterations = 10

	rejectedPrefix    = "⛔ MISSION REJECTED BY THE PROPHET: "
	maxSummaryLength  = 500
	maxMissionPreview = 80
)

// SkillSource looks up the instructions of a named skill.
type SkillSource interface {
	Instructions(name string) (string, bool)
}

// AgentSpec is everything needed to construct the sub-agent of a mission.
type AgentSpec struct {
	Name          string
	Instruction   string
	Tools         []tool.Tool
	MaxIterations int
}

// AgentFactory constructs the sub-agent for an approved mission.
type AgentFactory func(spec AgentSpec) core.Agent

// Options configures a Dispatcher.
type Options struct {
	Modes    Modes
	MaxDepth int
	// Lenient drops unknown capabilities with a warning instead of refusing
	// the mission.
	Lenient           bool
	DefaultIterations int
	Tasks             task.Store
	Skills            SkillSource
	// Executor carries the policy bindings applied to angel tool calls.
	Executor     *tool.Executor
	AgentFactory AgentFactory
	// Events, when set, receives every sub-agent event tagged with the angel name.
	Events chan<- core.Event
	Logger logging.Logger
	Tracer trace.Tracer
}

// Dispatcher builds capability-scoped, guard-gated sub-agents and returns
// their reports. It is safe for concurrent use.
type Dispatcher struct {
	registry *tool.Registry
	checker  guard.Checker
	roles    Roles
	opts     Options
}

// New creates a dispatcher. Sub-agents run on llm unless opts.AgentFactory
// is set. A nil roles map selects DefaultRoles.
func New(llm model.Model, registry *tool.Registry, checker guard.Checker, roles Roles, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxDepth:          DefaultMaxDepth,
		DefaultIterations: DefaultIterations,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.DefaultIterations <= 0 {
		opts.DefaultIterations = DefaultIterations
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/jubilee/angel")
	}
	if roles == nil {
		roles = DefaultRoles()
	}
	if opts.AgentFactory == nil {
		opts.AgentFactory = defaultFactory(llm, opts)
	}
	return &Dispatcher{registry: registry, checker: checker, roles: roles, opts: opts}
}

func defaultFactory(llm model.Model, opts Options) AgentFactory {
	return func(spec AgentSpec) core.Agent {
		return agent.New(spec.Name, llm, func(o *agent.Options) {
			o.Instruction = agent.NewInstructionFromText(spec.Instruction)
			o.Tools = spec.Tools
			o.MaxIterations = spec.MaxIterations
			o.Executor = opts.Executor
			o.Logger = opts.Logger
		})
	}
}

// Roles returns the role templates known to the dispatcher.
func (d *Dispatcher) Roles() Roles { return d.roles }

// Dispatch runs one mission and returns the angel's report. Refusals and
// failures are returned as text; Dispatch never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, m Mission) string {
	ctx, span := d.opts.Tracer.Start(ctx, "angel.dispatch", trace.WithAttributes(
		attribute.String("angel.role", m.Role),
		attribute.String("angel.name", m.Name),
		attribute.Int64("angel.task_id", m.TaskID),
	))
	defer span.End()

	start := time.Now()
	out, outcome := d.dispatch(ctx, m)
	span.SetAttributes(attribute.String("angel.outcome", outcome))

	name := m.Name
	if name == "" {
		name = m.Role
	}
	logging.LogDispatch(d.opts.Logger, name, core.DispatchDepth(ctx), time.Since(start), outcome)
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, m Mission) (string, string) {
	log := d.opts.Logger
	depth := core.DispatchDepth(ctx)

	// 1. recursion depth
	if depth >= d.opts.MaxDepth {
		log.Warn("angel.dispatch.depth_exceeded", "depth", depth, "max", d.opts.MaxDepth, "name", m.Name)
		return fmt.Sprintf("⛔ %s: angel dispatch depth limit (%d) reached. Complete the mission yourself instead of dispatching another angel.",
			core.KindRecursionDepth, d.opts.MaxDepth), "depth_exceeded"
	}

	if m.Text == "" {
		return configError("a mission description is required"), "config_error"
	}

	// 2. role resolution and mode gate
	var role *RoleTemplate
	if m.Role != "" {
		tmpl, ok := d.roles.Get(m.Role)
		if !ok {
			return configError(fmt.Sprintf("unknown angel role %q (available: %s)", m.Role, strings.Join(d.roles.Keys(), ", "))), "config_error"
		}
		if !d.opts.Modes.Allows(tmpl.RequiredMode) {
			log.Info("angel.dispatch.mode_gate", "role", m.Role, "required_mode", string(tmpl.RequiredMode))
			return modeRefusal(m.Role, tmpl.RequiredMode), "mode_gate"
		}
		role = &tmpl
	}

	name := m.Name
	caps := m.Capabilities
	iterations := m.Iterations
	if role != nil {
		if name == "" {
			name = role.Name
		}
		if len(caps) == 0 {
			caps = role.Capabilities
		}
		if iterations <= 0 {
			iterations = role.Iterations
		}
	}
	if name == "" {
		return configError("a mission needs a role or a name"), "config_error"
	}
	if iterations <= 0 {
		iterations = d.opts.DefaultIterations
	}

	// 3. capability resolution
	// Built-in capabilities without a registered tool are dropped in both
	// modes; strict mode refuses names outside the closed capability set.
	tools, missing := d.registry.Resolve(caps)
	if len(missing) > 0 {
		var unknown []tool.Capability
		for _, c := range missing {
			if !c.IsBuiltin() {
				unknown = append(unknown, c)
			}
		}
		if len(unknown) > 0 && !d.opts.Lenient {
			log.Warn("angel.dispatch.unknown_capabilities", "name", name, "unknown", unknown)
			return capabilityError(unknown), "config_error"
		}
		log.Warn("angel.dispatch.capabilities_dropped", "name", name, "dropped", missing)
	}
	if len(tools) == 0 && len(caps) > 0 {
		return capabilityError(caps), "config_error"
	}
	granted := make([]tool.Capability, len(tools))
	for i, t := range tools {
		granted[i] = tool.Capability(t.Name())
	}

	// 4. guard gate
	verdict := d.checker.Check(ctx, guard.PolicyMission, name, m.Text)
	if !verdict.Approved {
		if m.TaskID > 0 && d.opts.Tasks != nil {
			if err := d.opts.Tasks.Append(ctx, m.TaskID, task.Blocked(verdict.Reason)); err != nil {
				log.Warn("angel.task.append_failed", "task_id", m.TaskID, "error", err.Error())
			}
		}
		return rejectedPrefix + verdict.Reason, "rejected"
	}

	// 5. resumed task context
	var taskContext string
	if m.TaskID > 0 && d.opts.Tasks != nil {
		summaries, err := d.opts.Tasks.Load(ctx, m.TaskID)
		if err != nil {
			log.Warn("angel.task.load_failed", "task_id", m.TaskID, "error", err.Error())
		}
		taskContext = task.FormatContext(m.TaskID, summaries)
	}

	// 6. layered system prompt
	layers := promptLayers{
		name:         name,
		mission:      m.Text,
		capabilities: granted,
		role:         role,
		taskContext:  taskContext,
	}
	if m.SkillFocus != "" && d.opts.Skills != nil {
		if text, ok := d.opts.Skills.Instructions(m.SkillFocus); ok {
			layers.skill, layers.skillName = text, m.SkillFocus
		} else {
			log.Warn("angel.skill.not_found", "skill", m.SkillFocus)
		}
	}

	// 7. run with a fresh history
	log.Info("angel.dispatch.start",
		"name", name,
		"role", m.Role,
		"depth", depth,
		"tools", len(tools),
		"iterations", iterations,
		"mission", preview(m.Text),
	)
	start := time.Now()

	sub := d.opts.AgentFactory(AgentSpec{
		Name:          name,
		Instruction:   layers.build(),
		Tools:         tools,
		MaxIterations: iterations,
	})
	events := sub.Run(core.WithDispatchDepth(ctx, depth+1), m.Text, core.NewChatHistory())
	res := agent.Collect(events, d.forward(ctx, name))

	if err := res.Err(); err != nil {
		log.Error("angel.dispatch.failed", "name", name, "error", err.Error())
		return "Angel execution failed: " + res.Terminal.Message, "failed"
	}

	// 8. record the session
	if m.TaskID > 0 && d.opts.Tasks != nil {
		summary := fmt.Sprintf("[%s] %s", name, truncate(res.Answer, maxSummaryLength))
		if err := d.opts.Tasks.Append(ctx, m.TaskID, task.NewSummary(summary)); err != nil {
			log.Warn("angel.task.append_failed", "task_id", m.TaskID, "error", err.Error())
		}
	}

	log.Debug("angel.run.summary",
		"name", name,
		"iterations", res.Iterations,
		"forced", res.Forced,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	// 9. report
	return report(name, res.Answer), "completed"
}

// forward returns the side-channel observer, or nil when none is configured.
func (d *Dispatcher) forward(ctx context.Context, name string) func(core.Event) {
	if d.opts.Events == nil {
		return nil
	}
	return func(ev core.Event) {
		select {
		case d.opts.Events <- ev.WithSource(name):
		case <-ctx.Done():
		}
	}
}

func configError(msg string) string {
	return fmt.Sprintf("Error: %s: %s", core.KindConfiguration, msg)
}

func preview(s string) string {
	return truncate(s, maxMissionPreview)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
