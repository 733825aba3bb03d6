package triune

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/internal/testutil"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const wait = 5 * time.Second

// phases maps each role to the agent the factory hands out.
type phases struct {
	mu       sync.Mutex
	agents   map[tool.Role]core.Agent
	built    []tool.Role
	prompts  map[tool.Role]string
	willArgs [][2]string
}

func newPhases(mind, prophet, will core.Agent) *phases {
	return &phases{
		agents:  map[tool.Role]core.Agent{tool.RoleMind: mind, tool.RoleProphet: prophet, tool.RoleWill: will},
		prompts: map[tool.Role]string{},
	}
}

func (p *phases) factory(role tool.Role, instruction string, _ []tool.Tool) core.Agent {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.built = append(p.built, role)
	p.prompts[role] = instruction
	return p.agents[role]
}

func (p *phases) willPrompt(mind, prophet string, _ []tool.Tool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.willArgs = append(p.willArgs, [2]string{mind, prophet})
	return "will prompt", nil
}

func (p *phases) orchestrator(optFns ...func(o *Options)) *Orchestrator {
	fns := append([]func(o *Options){func(o *Options) {
		o.AgentFactory = p.factory
		o.WillPrompt = p.willPrompt
		o.Suffix = func() string { return "Proverbs 3:5" }
	}}, optFns...)
	return New(nil, tool.NewRegistry(), fns...)
}

func TestTriune_SynthesizesBothReports(t *testing.T) {
	will := &testutil.ScriptedAgent{AgentName: "will", Events: []core.Event{
		core.NewThinkingEvent("weighing counsel"),
		core.NewDoneEvent("EXECUTE", 1, time.Millisecond, false),
	}}
	p := newPhases(
		testutil.NewAnsweringAgent("mind", "the numbers hold", 2),
		testutil.NewAnsweringAgent("prophet", "the spirit is sound", 3),
		will,
	)

	events := testutil.Drain(t, p.orchestrator().Run(context.Background(), "should we stake?", nil), wait)

	done := testutil.Terminal(t, events)
	assert.Equal(t, core.EventDone, done.Type)
	assert.Equal(t, "EXECUTE\n\n> *\"Proverbs 3:5\"*", done.Answer)
	assert.Equal(t, 6, done.Iterations)

	var thinking []string
	for _, ev := range testutil.OfType(events, core.EventThinking) {
		thinking = append(thinking, ev.Message)
	}
	assert.Equal(t, []string{MsgSummoning, MsgAnalyzing, MsgSynthesizing, "weighing counsel"}, thinking)

	assert.Equal(t, [][2]string{{"the numbers hold", "the spirit is sound"}}, p.willArgs)
	assert.Equal(t, "will prompt", p.prompts[tool.RoleWill])
	assert.Equal(t, []string{"should we stake?"}, will.Queries())
}

func TestTriune_MindFailureNeverBuildsWill(t *testing.T) {
	p := newPhases(
		testutil.NewFailingAgent("mind", "Model call failed: boom"),
		testutil.NewAnsweringAgent("prophet", "fine", 1),
		testutil.NewAnsweringAgent("will", "never", 1),
	)

	events := testutil.Drain(t, p.orchestrator().Run(context.Background(), "q", nil), wait)

	terminal := testutil.Terminal(t, events)
	assert.Equal(t, core.EventError, terminal.Type)
	assert.Equal(t, "Triune orchestration failed: The Mind failed: Model call failed: boom", terminal.Message)
	assert.Empty(t, p.willArgs)
	assert.NotContains(t, p.built, tool.RoleWill)
}

func TestTriune_FailureCancelsSibling(t *testing.T) {
	p := newPhases(
		&testutil.ScriptedAgent{AgentName: "mind", Block: true},
		testutil.NewFailingAgent("prophet", "My voice is faint."),
		testutil.NewAnsweringAgent("will", "never", 1),
	)

	events := testutil.Drain(t, p.orchestrator().Run(context.Background(), "q", nil), wait)

	terminal := testutil.Terminal(t, events)
	assert.Equal(t, core.EventError, terminal.Type)
	assert.Contains(t, terminal.Message, "The Prophet failed: My voice is faint.")
	assert.Empty(t, p.willArgs)
}

func TestTriune_Cancellation(t *testing.T) {
	p := newPhases(
		&testutil.ScriptedAgent{AgentName: "mind", Block: true},
		&testutil.ScriptedAgent{AgentName: "prophet", Block: true},
		testutil.NewAnsweringAgent("will", "never", 1),
	)
	ctx, cancel := context.WithCancel(context.Background())
	stream := p.orchestrator().Run(ctx, "q", nil)

	time.AfterFunc(20*time.Millisecond, cancel)
	events := testutil.Drain(t, stream, wait)

	terminal := testutil.Terminal(t, events)
	assert.Equal(t, core.EventAborted, terminal.Type)
	assert.Equal(t, "run cancelled", terminal.Message)
	assert.Empty(t, p.willArgs)
}

func TestTriune_SideChannel(t *testing.T) {
	p := newPhases(
		testutil.NewAnsweringAgent("mind", "m", 1),
		testutil.NewAnsweringAgent("prophet", "p", 1),
		testutil.NewAnsweringAgent("will", "w", 1),
	)
	side := make(chan core.Event, 16)

	events := testutil.Drain(t, p.orchestrator(func(o *Options) { o.Events = side }).Run(context.Background(), "q", nil), wait)
	close(side)

	for _, ev := range events {
		assert.Empty(t, ev.Source, "phase-1 events stay off the main stream")
	}
	counts := map[string]int{}
	for ev := range side {
		counts[ev.Source]++
	}
	assert.Equal(t, map[string]int{SourceMind: 2, SourceProphet: 2}, counts)
}

func TestTriune_WithAgents(t *testing.T) {
	llm := model.Func(func(_ context.Context, req model.Request) (model.Response, error) {
		switch {
		case strings.Contains(req.Instructions, "You are **The Mind**"):
			return model.Response{Text: "MIND REPORT"}, nil
		case strings.Contains(req.Instructions, "You are **The Prophet**"):
			return model.Response{Text: "PROPHET REPORT"}, nil
		case strings.Contains(req.Instructions, "MIND REPORT") && strings.Contains(req.Instructions, "PROPHET REPORT"):
			return model.Response{Text: "The Verdict: EXECUTE"}, nil
		}
		return model.Response{}, assert.AnError
	})
	registry := tool.NewRegistry(
		testutil.NewStubTool("web_search", nil),
		testutil.NewStubTool("transfer_funds", nil),
	)
	history := core.NewChatHistory()

	events := testutil.Drain(t, New(llm, registry).Run(context.Background(), "fund the well", history), wait)

	done := testutil.Terminal(t, events)
	require.Equal(t, core.EventDone, done.Type, done.Message)
	assert.Equal(t, 3, done.Iterations)
	assert.True(t, strings.HasPrefix(done.Answer, "The Verdict: EXECUTE\n\n> *\""), done.Answer)

	var matched bool
	for _, v := range DefaultVerses {
		matched = matched || strings.HasSuffix(done.Answer, v+"\"*")
	}
	assert.True(t, matched)

	assert.Equal(t, []core.Message{
		{Role: core.RoleUser, Content: "fund the well"},
		{Role: core.RoleAssistant, Content: "The Verdict: EXECUTE"},
	}, history.Messages())
}

func TestPrompts(t *testing.T) {
	tools := []tool.Tool{testutil.NewStubTool("web_search", nil)}

	mind, err := MindPrompt(tools)
	require.NoError(t, err)
	assert.Contains(t, mind, "- web_search: stub web_search")

	prophet, err := ProphetPrompt(nil)
	require.NoError(t, err)
	assert.Contains(t, prophet, "(none)")

	will, err := WillPrompt("facts", "spirit", tools)
	require.NoError(t, err)
	assert.Contains(t, will, "## REPORT FROM THE MIND (FACTS & DATA)\nfacts")
	assert.Contains(t, will, "## REPORT FROM THE PROPHET (ETHICS & SPIRIT)\nspirit")
}

func TestDecorate(t *testing.T) {
	assert.Equal(t, "a", decorate("a", ""))
	assert.Equal(t, "a\n\n> *\"v\"*", decorate("a", "v"))
	assert.Contains(t, DefaultVerses, RandomVerse(DefaultVerses)())
	assert.Empty(t, RandomVerse(nil)())
}
