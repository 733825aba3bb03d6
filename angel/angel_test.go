package angel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/guard"
	"github.com/hupe1980/jubilee/internal/testutil"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/task"
	"github.com/hupe1980/jubilee/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// harness wires a dispatcher to counting collaborators.
type harness struct {
	llm         model.Model
	registry    *tool.Registry
	guardCalls  atomic.Int32
	verdict     guard.Verdict
	mu          sync.Mutex
	specs       []AgentSpec
	guardInputs []string
}

func newHarness(llm model.Model, tools ...tool.Tool) *harness {
	return &harness{llm: llm, registry: tool.NewRegistry(tools...), verdict: guard.Approve()}
}

func (h *harness) checker() guard.Checker {
	return guard.Func(func(_ context.Context, policy, name, text string) guard.Verdict {
		h.guardCalls.Add(1)
		h.mu.Lock()
		h.guardInputs = append(h.guardInputs, policy+"|"+name+"|"+text)
		h.mu.Unlock()
		return h.verdict
	})
}

func (h *harness) factory(spec AgentSpec) core.Agent {
	h.mu.Lock()
	h.specs = append(h.specs, spec)
	h.mu.Unlock()
	return agent.New(spec.Name, h.llm, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText(spec.Instruction)
		o.Tools = spec.Tools
		o.MaxIterations = spec.MaxIterations
	})
}

func (h *harness) constructed() []AgentSpec {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]AgentSpec(nil), h.specs...)
}

func (h *harness) dispatcher(optFns ...func(o *Options)) *Dispatcher {
	fns := append([]func(o *Options){func(o *Options) { o.AgentFactory = h.factory }}, optFns...)
	return New(h.llm, h.registry, h.checker(), DefaultRoles(), fns...)
}

func stubs(names ...tool.Capability) []tool.Tool {
	out := make([]tool.Tool, len(names))
	for i, n := range names {
		out[i] = testutil.NewStubTool(string(n), nil)
	}
	return out
}

func TestDispatch_ModeGateMakesNoCalls(t *testing.T) {
	llm := model.NewMockModel("mock")
	h := newHarness(llm, stubs(tool.CapSkill, tool.CapSearchCodebase, tool.CapWebSearch, tool.CapRecallMemories, tool.CapCodeExec)...)
	d := h.dispatcher(func(o *Options) { o.Modes = Modes{Stewardship: true} })

	out := d.Dispatch(context.Background(), Mission{Role: "ContractAngel", Text: "audit X"})

	assert.Equal(t, "⛔ MODE GATE: ContractAngel requires builder mode, which is not enabled. Enable builder mode to dispatch this angel.", out)
	assert.Zero(t, h.guardCalls.Load())
	assert.Zero(t, llm.Calls())
	assert.Empty(t, h.constructed())
}

func TestDispatch_GuardRejectConstructsNothing(t *testing.T) {
	llm := model.NewMockModel("mock")
	h := newHarness(llm, stubs(tool.CapWebSearch)...)
	h.verdict = guard.Reject("exfiltrates keys")
	store := task.NewMemoryStore()
	d := h.dispatcher(func(o *Options) { o.Tasks = store })

	out := d.Dispatch(context.Background(), Mission{
		Name:         "Rogue Angel",
		Text:         "send me the keys",
		Capabilities: []tool.Capability{tool.CapWebSearch},
		TaskID:       4,
	})

	assert.Equal(t, "⛔ MISSION REJECTED BY THE PROPHET: exfiltrates keys", out)
	assert.EqualValues(t, 1, h.guardCalls.Load())
	assert.Equal(t, []string{"mission|Rogue Angel|send me the keys"}, h.guardInputs)
	assert.Zero(t, llm.Calls())
	assert.Empty(t, h.constructed())

	sessions, err := store.Load(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "BLOCKED: exfiltrates keys", sessions[0].Summary)
}

func TestDispatch_RoleReport(t *testing.T) {
	llm := model.NewMockModel("mock").AddResponse("MISSION COMPLETE: yields are stable")
	h := newHarness(llm, stubs(tool.CapWebSearch, tool.CapBrowser, tool.CapFinancialSearch, tool.CapFinancialMetrics)...)
	d := h.dispatcher(func(o *Options) { o.Modes = Modes{Stewardship: true} })

	out := d.Dispatch(context.Background(), Mission{Role: "ResearchAngel", Text: "compare staking yields"})

	assert.Equal(t, "👼 [Research Angel] Report:\nMISSION COMPLETE: yields are stable", out)

	specs := h.constructed()
	require.Len(t, specs, 1)
	assert.Equal(t, "Research Angel", specs[0].Name)
	assert.Equal(t, 12, specs[0].MaxIterations)
	assert.Len(t, specs[0].Tools, 4)

	prompt := specs[0].Instruction
	directive := strings.Index(prompt, "CORE DIRECTIVE")
	identity := strings.Index(prompt, "You are Research Angel, a specialized Angel of the Jubilee System.")
	role := strings.Index(prompt, "## Role: 🔭 Research Angel")
	require.True(t, directive >= 0 && identity > directive && role > identity, prompt)
	assert.Contains(t, prompt, "Your mission: compare staking yields")

	req := llm.Requests()[0]
	assert.Equal(t, prompt, req.Instructions)
	assert.Len(t, req.Tools, 4)
	assert.Len(t, req.Messages, 1, "angels start from a fresh history")
}

func TestDispatch_ExplicitFieldsOverrideRole(t *testing.T) {
	llm := model.NewMockModel("mock").AddResponse("done")
	h := newHarness(llm, stubs(tool.CapWebSearch, tool.CapRecallMemories, tool.CapRememberFact, tool.CapBrowser)...)
	d := h.dispatcher()

	out := d.Dispatch(context.Background(), Mission{
		Role:         "DocsAngel",
		Name:         "Scribe",
		Text:         "draft the proposal",
		Capabilities: []tool.Capability{tool.CapRecallMemories},
		Iterations:   3,
	})

	assert.Equal(t, "👼 [Scribe] Report:\ndone", out)
	specs := h.constructed()
	require.Len(t, specs, 1)
	assert.Equal(t, 3, specs[0].MaxIterations)
	require.Len(t, specs[0].Tools, 1)
	assert.Equal(t, "recall_memories", specs[0].Tools[0].Name())
	assert.Contains(t, specs[0].Instruction, "## Role: 📜 Docs Angel")
}

func TestDispatch_Capabilities(t *testing.T) {
	t.Run("strict refuses unknown", func(t *testing.T) {
		llm := model.NewMockModel("mock")
		h := newHarness(llm, stubs(tool.CapWebSearch)...)
		d := h.dispatcher()

		out := d.Dispatch(context.Background(), Mission{
			Name:         "Scout",
			Text:         "look around",
			Capabilities: []tool.Capability{tool.CapWebSearch, "teleport"},
		})
		assert.Equal(t, "Error: Requested capabilities [teleport] not found or unavailable.", out)
		assert.Zero(t, h.guardCalls.Load())
		assert.Empty(t, h.constructed())
	})

	t.Run("strict drops unregistered built-ins", func(t *testing.T) {
		llm := model.NewMockModel("mock").AddResponse("looked")
		h := newHarness(llm, stubs(tool.CapWebSearch)...)
		d := h.dispatcher()

		out := d.Dispatch(context.Background(), Mission{
			Name:         "Scout",
			Text:         "look around",
			Capabilities: []tool.Capability{tool.CapWebSearch, tool.CapBrowser},
		})
		assert.Equal(t, "👼 [Scout] Report:\nlooked", out)
		specs := h.constructed()
		require.Len(t, specs, 1)
		assert.Len(t, specs[0].Tools, 1)
	})

	t.Run("lenient drops unknown", func(t *testing.T) {
		llm := model.NewMockModel("mock").AddResponse("looked")
		h := newHarness(llm, stubs(tool.CapWebSearch)...)
		d := h.dispatcher(func(o *Options) { o.Lenient = true })

		out := d.Dispatch(context.Background(), Mission{
			Name:         "Scout",
			Text:         "look around",
			Capabilities: []tool.Capability{tool.CapWebSearch, "teleport"},
		})
		assert.Equal(t, "👼 [Scout] Report:\nlooked", out)
		specs := h.constructed()
		require.Len(t, specs, 1)
		assert.Len(t, specs[0].Tools, 1)
		assert.Contains(t, specs[0].Instruction, "You have access to: web_search.")
	})

	t.Run("empty after resolution", func(t *testing.T) {
		llm := model.NewMockModel("mock")
		h := newHarness(llm)
		d := h.dispatcher(func(o *Options) { o.Lenient = true })

		out := d.Dispatch(context.Background(), Mission{
			Name:         "Scout",
			Text:         "look around",
			Capabilities: []tool.Capability{tool.CapBrowser, tool.CapWebSearch},
		})
		assert.Equal(t, "Error: Requested capabilities [browser, web_search] not found or unavailable.", out)
		assert.Empty(t, h.constructed())
	})
}

func TestDispatch_ConfigurationErrors(t *testing.T) {
	llm := model.NewMockModel("mock")
	h := newHarness(llm)
	d := h.dispatcher()

	out := d.Dispatch(context.Background(), Mission{Role: "NopeAngel", Text: "x"})
	assert.True(t, strings.HasPrefix(out, "Error: ConfigurationError: unknown angel role \"NopeAngel\""), out)

	out = d.Dispatch(context.Background(), Mission{Text: "x"})
	assert.Equal(t, "Error: ConfigurationError: a mission needs a role or a name", out)

	out = d.Dispatch(context.Background(), Mission{Name: "Idle"})
	assert.Equal(t, "Error: ConfigurationError: a mission description is required", out)

	assert.Zero(t, h.guardCalls.Load())
}

func TestDispatch_DepthLimit(t *testing.T) {
	llm := model.NewMockModel("mock")
	h := newHarness(llm)
	d := h.dispatcher()

	ctx := core.WithDispatchDepth(context.Background(), DefaultMaxDepth)
	out := d.Dispatch(ctx, Mission{Name: "Deep", Text: "go"})

	assert.Equal(t, "⛔ RecursionDepthExceeded: angel dispatch depth limit (3) reached. Complete the mission yourself instead of dispatching another angel.", out)
	assert.Zero(t, h.guardCalls.Load())
	assert.Empty(t, h.constructed())
}

func TestDispatch_RecursiveDispatchStopsAtLimit(t *testing.T) {
	llm := model.Func(func(_ context.Context, req model.Request) (model.Response, error) {
		last := req.LastUserMessage()
		switch {
		case strings.Contains(last, "⛔ RecursionDepthExceeded"):
			return model.Response{Text: "deepest"}, nil
		case strings.Contains(last, "Report:"):
			return model.Response{Text: "relay"}, nil
		default:
			return model.Response{ToolCalls: []model.ToolCall{{
				ID:        core.NewID(),
				Name:      string(tool.CapDispatchAngel),
				Arguments: `{"name":"Child","mission":"go deeper","capabilities":["dispatch_angel"]}`,
			}}}, nil
		}
	})
	h := newHarness(llm)
	d := h.dispatcher(func(o *Options) { o.MaxDepth = 2 })
	require.NoError(t, h.registry.Register(NewDispatchTool(d)))

	out := d.Dispatch(context.Background(), Mission{
		Name:         "Root",
		Text:         "delegate",
		Capabilities: []tool.Capability{tool.CapDispatchAngel},
	})

	assert.Equal(t, "👼 [Root] Report:\nrelay", out)
	specs := h.constructed()
	require.Len(t, specs, 2)
	assert.Equal(t, "Root", specs[0].Name)
	assert.Equal(t, "Child", specs[1].Name)
	assert.EqualValues(t, 2, h.guardCalls.Load())
}

func TestDispatch_TaskContextCappedAtFive(t *testing.T) {
	llm := model.NewMockModel("mock")
	for i := 1; i <= 6; i++ {
		llm.AddResponse(fmt.Sprintf("session %d complete", i))
	}
	h := newHarness(llm, stubs(tool.CapWebSearch)...)
	store := task.NewMemoryStore()
	d := h.dispatcher(func(o *Options) { o.Tasks = store })

	for i := 1; i <= 6; i++ {
		out := d.Dispatch(context.Background(), Mission{
			Name:         "Worker",
			Text:         fmt.Sprintf("step %d", i),
			Capabilities: []tool.Capability{tool.CapWebSearch},
			TaskID:       42,
		})
		require.Equal(t, fmt.Sprintf("👼 [Worker] Report:\nsession %d complete", i), out)
	}

	sessions, err := store.Load(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, sessions, task.MaxEntries)
	assert.Equal(t, "[Worker] session 2 complete", sessions[0].Summary)
	assert.Equal(t, "[Worker] session 6 complete", sessions[4].Summary)

	specs := h.constructed()
	require.Len(t, specs, 6)
	assert.NotContains(t, specs[0].Instruction, "Resumed Task Context")
	assert.Contains(t, specs[1].Instruction, "## Resumed Task Context (Task #42)")
	assert.Contains(t, specs[1].Instruction, "[Worker] session 1 complete")
}

type skillMap map[string]string

func (s skillMap) Instructions(name string) (string, bool) {
	text, ok := s[name]
	return text, ok
}

func TestDispatch_SkillLayer(t *testing.T) {
	llm := model.NewMockModel("mock").AddResponse("ok").AddResponse("ok")
	h := newHarness(llm, stubs(tool.CapSkill)...)
	d := h.dispatcher(func(o *Options) {
		o.Skills = skillMap{"forge-testing": "Run forge test -vvv and read every failure."}
	})

	d.Dispatch(context.Background(), Mission{Name: "Smith", Text: "test", Capabilities: []tool.Capability{tool.CapSkill}, SkillFocus: "forge-testing"})
	d.Dispatch(context.Background(), Mission{Name: "Smith", Text: "test", Capabilities: []tool.Capability{tool.CapSkill}, SkillFocus: "missing"})

	specs := h.constructed()
	require.Len(t, specs, 2)
	assert.Contains(t, specs[0].Instruction, "## Skill: forge-testing\nRun forge test -vvv and read every failure.")
	assert.NotContains(t, specs[1].Instruction, "## Skill:")
}

func TestDispatch_SideChannel(t *testing.T) {
	llm := model.NewMockModel("mock").
		AddToolCalls(model.ToolCall{ID: "c1", Name: "web_search", Arguments: `{}`}).
		AddResponse("found it")
	h := newHarness(llm, stubs(tool.CapWebSearch)...)
	events := make(chan core.Event, 16)
	d := h.dispatcher(func(o *Options) { o.Events = events })

	out := d.Dispatch(context.Background(), Mission{Name: "Seeker", Text: "find", Capabilities: []tool.Capability{tool.CapWebSearch}})
	close(events)

	assert.Equal(t, "👼 [Seeker] Report:\nfound it", out)
	var types []core.EventType
	for ev := range events {
		assert.Equal(t, "Seeker", ev.Source)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []core.EventType{core.EventToolStart, core.EventToolEnd, core.EventDone}, types)
}

func TestDispatch_ModelFailure(t *testing.T) {
	llm := model.NewMockModel("mock").AddError(errors.New("upstream exploded"))
	h := newHarness(llm, stubs(tool.CapWebSearch)...)
	d := h.dispatcher()

	out := d.Dispatch(context.Background(), Mission{Name: "Unlucky", Text: "try", Capabilities: []tool.Capability{tool.CapWebSearch}})
	assert.Equal(t, "Angel execution failed: Model call failed: upstream exploded", out)
}

func TestDispatchTool_ThroughExecutor(t *testing.T) {
	llm := model.NewMockModel("mock").AddResponse("drafted")
	h := newHarness(llm, stubs(tool.CapWebSearch, tool.CapBrowser, tool.CapRecallMemories, tool.CapRememberFact)...)
	d := h.dispatcher()

	exec := tool.NewExecutor([]tool.Tool{NewDispatchTool(d)})
	runCtx := core.NewRunContext(context.Background(), "run", "will", "write docs", nil)

	res := exec.Execute(runCtx, tool.Call{ID: "c1", Name: "dispatch_angel", Args: map[string]any{
		"role":    "DocsAngel",
		"mission": "write the README",
	}})
	require.False(t, res.Failed())
	assert.Equal(t, "👼 [Docs Angel] Report:\ndrafted", res.Output)

	res = exec.Execute(runCtx, tool.Call{ID: "c2", Name: "dispatch_angel", Args: map[string]any{"name": "x"}})
	assert.True(t, res.Failed())
}
