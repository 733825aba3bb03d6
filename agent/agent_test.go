package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

func lastPrompt(req model.Request) string {
	return req.Messages[len(req.Messages)-1].Content
}

func TestAgent_PlainAnswer(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse("The answer is 42.")
	history := core.NewChatHistory()

	a := New("Tester", m, func(o *Options) { o.Instruction = NewInstructionFromText("be brief") })
	events := testutil.Drain(t, a.Run(context.Background(), "meaning of life?", history), wait)

	done := testutil.Terminal(t, events)
	assert.Equal(t, core.EventDone, done.Type)
	assert.Equal(t, "The answer is 42.", done.Answer)
	assert.Equal(t, 1, done.Iterations)
	assert.False(t, done.Forced)
	assert.NotEmpty(t, done.RunID)

	assert.Equal(t, []core.Message{
		{Role: core.RoleUser, Content: "meaning of life?"},
		{Role: core.RoleAssistant, Content: "The answer is 42."},
	}, history.Messages())

	req := m.Requests()[0]
	assert.Equal(t, "be brief", req.Instructions)
	assert.True(t, strings.HasPrefix(lastPrompt(req), "Query: meaning of life?"))
}

func TestAgent_HistoryIsContext(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse("second")
	history := core.NewChatHistory(
		core.Message{Role: core.RoleUser, Content: "first question"},
		core.Message{Role: core.RoleAssistant, Content: "first answer"},
	)

	testutil.Drain(t, New("Tester", m).Run(context.Background(), "follow up", history), wait)

	req := m.Requests()[0]
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "first answer", req.Messages[1].Content)
	assert.Equal(t, 4, history.Len())
}

func TestAgent_ToolCallThenAnswer(t *testing.T) {
	search := testutil.NewStubTool("web_search", func(_ *core.ToolContext, args map[string]any) (any, error) {
		return fmt.Sprintf("results for %v", args["q"]), nil
	})
	m := model.NewMockModel("mock").
		AddStep(model.MockStep{Response: model.Response{
			Text:      "Let me search.",
			ToolCalls: []model.ToolCall{{ID: "c1", Name: "web_search", Arguments: `{"q":"jubilee"}`}},
		}}).
		AddResponse("Found it.")

	a := New("Tester", m, func(o *Options) { o.Tools = []tool.Tool{search} })
	events := testutil.Drain(t, a.Run(context.Background(), "find jubilee", nil), wait)

	assert.Equal(t, []core.EventType{
		core.EventThinking, core.EventToolStart, core.EventToolEnd, core.EventDone,
	}, testutil.Types(events))
	testutil.AssertToolPairing(t, events)

	assert.Equal(t, "Let me search.", events[0].Message)
	assert.Equal(t, "web_search", events[1].Tool)
	assert.Equal(t, map[string]any{"q": "jubilee"}, events[1].Input)
	assert.Equal(t, "results for jubilee", events[2].Result)
	assert.Equal(t, 2, events[3].Iterations)
	assert.Equal(t, 1, search.Calls())

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "web_search", reqs[0].Tools[0].Function.Name)
	assert.Contains(t, lastPrompt(reqs[1]), "Data retrieved from tool calls:")
	assert.Contains(t, lastPrompt(reqs[1]), `### web_search({"q":"jubilee"})`)
	assert.Contains(t, lastPrompt(reqs[1]), "results for jubilee")
}

func TestAgent_ToolFailureIsData(t *testing.T) {
	broken := testutil.NewStubTool("financial_search", func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("upstream 503")
	})
	panicky := testutil.NewStubTool("browser", func(*core.ToolContext, map[string]any) (any, error) {
		panic("nil pointer")
	})
	m := model.NewMockModel("mock").
		AddToolCalls(
			model.ToolCall{ID: "c1", Name: "financial_search", Arguments: `{}`},
			model.ToolCall{ID: "c2", Name: "browser", Arguments: `{}`},
			model.ToolCall{ID: "c3", Name: "unknown_tool", Arguments: `{}`},
			model.ToolCall{ID: "c4", Name: "browser", Arguments: `{not json`},
		).
		AddResponse("Tools are down, here is what I know.")

	a := New("Tester", m, func(o *Options) { o.Tools = []tool.Tool{broken, panicky} })
	events := testutil.Drain(t, a.Run(context.Background(), "price of X", nil), wait)

	done := testutil.Terminal(t, events)
	assert.Equal(t, core.EventDone, done.Type)
	testutil.AssertToolPairing(t, events)

	errs := testutil.OfType(events, core.EventToolError)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Error, "upstream 503")
	assert.Contains(t, errs[1].Error, tool.CodePanic)
	assert.Contains(t, errs[2].Error, tool.CodeNotFound)
	assert.Contains(t, errs[3].Error, tool.CodeInvalidPayload)
	assert.Equal(t, 1, panicky.Calls())

	assert.Contains(t, lastPrompt(m.Requests()[1]), "Error: ")
}

func TestAgent_BudgetExhaustedForcesFinalAnswer(t *testing.T) {
	loopTool := testutil.NewStubTool("web_search", nil)
	m := model.NewMockModel("mock")
	for i := 0; i < 3; i++ {
		m.AddToolCalls(model.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "web_search", Arguments: `{}`})
	}
	m.AddResponse("Best effort answer.")

	history := core.NewChatHistory()
	a := New("Tester", m, func(o *Options) {
		o.Tools = []tool.Tool{loopTool}
		o.MaxIterations = 3
	})
	events := testutil.Drain(t, a.Run(context.Background(), "endless", history), wait)

	done := testutil.Terminal(t, events)
	assert.Equal(t, core.EventDone, done.Type)
	assert.True(t, done.Forced)
	assert.Equal(t, 3, done.Iterations)
	assert.Equal(t, "Best effort answer.", done.Answer)
	assert.Equal(t, 3, loopTool.Calls())
	assert.Equal(t, 2, history.Len())

	reqs := m.Requests()
	require.Len(t, reqs, 4)
	assert.NotContains(t, lastPrompt(reqs[1]), "Tool usage status")
	assert.Contains(t, lastPrompt(reqs[2]), "Tool usage status: this is iteration 3 of 3")
	assert.Empty(t, reqs[3].Tools)
	assert.Contains(t, lastPrompt(reqs[3]), "Answer the user's query using this data.")
}

func TestAgent_IterationsNeverExceedMax(t *testing.T) {
	for _, max := range []int{1, 2, 5} {
		m := model.NewMockModel("mock").Repeat(model.MockStep{Response: model.Response{
			ToolCalls: []model.ToolCall{{ID: "c", Name: "web_search", Arguments: `{}`}},
		}})
		a := New("Tester", m, func(o *Options) {
			o.Tools = []tool.Tool{testutil.NewStubTool("web_search", nil)}
			o.MaxIterations = max
		})
		done := testutil.Terminal(t, testutil.Drain(t, a.Run(context.Background(), "q", nil), wait))
		assert.LessOrEqual(t, done.Iterations, max)
		assert.True(t, done.Forced)
	}
}

func TestAgent_AuthErrorMessage(t *testing.T) {
	m := model.NewMockModel("mock").AddError(&model.APIError{Provider: "openai", StatusCode: 401, Err: errors.New("bad key")})
	history := core.NewChatHistory()

	events := testutil.Drain(t, New("Tester", m).Run(context.Background(), "hi", history), wait)

	term := testutil.Terminal(t, events)
	assert.Equal(t, core.EventError, term.Type)
	assert.Equal(t, AuthErrorMessage, term.Message)
	assert.Zero(t, history.Len())
}

func TestAgent_GenericModelError(t *testing.T) {
	m := model.NewMockModel("mock").AddError(errors.New("connection reset"))
	term := testutil.Terminal(t, testutil.Drain(t, New("Tester", m).Run(context.Background(), "hi", nil), wait))
	assert.Equal(t, core.EventError, term.Type)
	assert.Contains(t, term.Message, "connection reset")
	assert.NotEqual(t, AuthErrorMessage, term.Message)
}

func TestAgent_InstructionError(t *testing.T) {
	a := New("Tester", model.NewMockModel("mock"), func(o *Options) {
		o.Instruction = NewInstructionFromFunc(func(*core.RunContext) (string, error) { return "", errors.New("template") })
	})
	term := testutil.Terminal(t, testutil.Drain(t, a.Run(context.Background(), "hi", nil), wait))
	assert.Equal(t, core.EventError, term.Type)
}

func TestAgent_CancellationAborts(t *testing.T) {
	m := model.NewMockModel("mock").AddStep(model.MockStep{Response: model.Response{Text: "late"}, Delay: 10 * time.Second})
	history := core.NewChatHistory()

	ctx, cancel := context.WithCancel(context.Background())
	ch := New("Tester", m).Run(ctx, "slow", history)
	time.AfterFunc(20*time.Millisecond, cancel)

	events := testutil.Drain(t, ch, wait)
	term := testutil.Terminal(t, events)
	assert.Equal(t, core.EventAborted, term.Type)
	assert.Equal(t, "run cancelled", term.Message)
	assert.Zero(t, history.Len())
}

func TestAgent_CancellationDuringTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocking := testutil.NewStubTool("code_exec", func(tc *core.ToolContext, _ map[string]any) (any, error) {
		cancel()
		<-tc.Context().Done()
		return nil, tc.Context().Err()
	})
	m := model.NewMockModel("mock").
		AddToolCalls(model.ToolCall{ID: "c1", Name: "code_exec", Arguments: `{}`}).
		AddResponse("never")

	a := New("Tester", m, func(o *Options) { o.Tools = []tool.Tool{blocking} })
	events := testutil.Drain(t, a.Run(ctx, "run it", nil), wait)

	term := testutil.Terminal(t, events)
	assert.Equal(t, core.EventAborted, term.Type)
	assert.Equal(t, 1, m.Calls())
}

func TestAgent_RunTimeout(t *testing.T) {
	m := model.NewMockModel("mock").AddStep(model.MockStep{Response: model.Response{Text: "late"}, Delay: 10 * time.Second})
	a := New("Tester", m, func(o *Options) { o.RunTimeout = 20 * time.Millisecond })

	term := testutil.Terminal(t, testutil.Drain(t, a.Run(context.Background(), "slow", nil), wait))
	assert.Equal(t, core.EventAborted, term.Type)
	assert.Equal(t, "run timed out", term.Message)
}

func TestAgent_ModelTimeoutIsFatal(t *testing.T) {
	m := model.NewMockModel("mock").AddStep(model.MockStep{Response: model.Response{Text: "late"}, Delay: 10 * time.Second})
	a := New("Tester", m, func(o *Options) { o.ModelTimeout = 20 * time.Millisecond })

	term := testutil.Terminal(t, testutil.Drain(t, a.Run(context.Background(), "slow", nil), wait))
	assert.Equal(t, core.EventError, term.Type)
	assert.Contains(t, term.Message, "timed out")
}

func TestAgent_ParallelToolsKeepRequestOrder(t *testing.T) {
	slow := testutil.NewStubTool("financial_search", func(*core.ToolContext, map[string]any) (any, error) {
		time.Sleep(40 * time.Millisecond)
		return "slow result", nil
	})
	fast := testutil.NewStubTool("web_search", func(*core.ToolContext, map[string]any) (any, error) {
		return "fast result", nil
	})
	m := model.NewMockModel("mock").
		AddToolCalls(
			model.ToolCall{ID: "a", Name: "financial_search", Arguments: `{}`},
			model.ToolCall{ID: "b", Name: "web_search", Arguments: `{}`},
			model.ToolCall{ID: "c", Name: "web_search", Arguments: `{oops`},
		).
		AddResponse("done")

	a := New("Tester", m, func(o *Options) {
		o.Tools = []tool.Tool{slow, fast}
		o.ParallelTools = true
	})
	events := testutil.Drain(t, a.Run(context.Background(), "compare", nil), wait)

	assert.Equal(t, []core.EventType{
		core.EventToolStart, core.EventToolStart, core.EventToolStart,
		core.EventToolEnd, core.EventToolEnd, core.EventToolError,
		core.EventDone,
	}, testutil.Types(events))
	testutil.AssertToolPairing(t, events)
	assert.True(t, m.Requests()[0].ParallelToolCalls)

	prompt := lastPrompt(m.Requests()[1])
	assert.Less(t, strings.Index(prompt, "slow result"), strings.Index(prompt, "fast result"))
}

func TestAgent_PolicyRefusalIsToolEnd(t *testing.T) {
	transfer := testutil.NewStubTool("transfer_funds", nil)
	deny := tool.PolicyFunc{PolicyName: "deny", Fn: func(*core.ToolContext, string, map[string]any) tool.Decision {
		return tool.Deny("⛔ SECURITY BLOCK: nope")
	}}
	exec := tool.NewExecutor(nil, func(o *tool.ExecutorOptions) {
		o.Bindings = []tool.Binding{tool.Bind(tool.MatchContains("transfer"), deny)}
	})
	m := model.NewMockModel("mock").
		AddToolCalls(model.ToolCall{ID: "c1", Name: "transfer_funds", Arguments: `{"to":"0xdead"}`}).
		AddResponse("Transfer was blocked.")

	a := New("Tester", m, func(o *Options) {
		o.Executor = exec
		o.Tools = []tool.Tool{transfer}
	})
	events := testutil.Drain(t, a.Run(context.Background(), "send funds", nil), wait)

	ends := testutil.OfType(events, core.EventToolEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "⛔ SECURITY BLOCK: nope", ends[0].Result)
	assert.Zero(t, transfer.Calls())
}

func TestCollect(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse("ok")
	var seen int
	res := Collect(New("Tester", m).Run(context.Background(), "q", nil), func(core.Event) { seen++ })
	require.NoError(t, res.Err())
	assert.Equal(t, "ok", res.Answer)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, seen)

	failing := model.NewMockModel("mock").AddError(errors.New("down"))
	res = Collect(New("Tester", failing).Run(context.Background(), "q", nil), nil)
	assert.ErrorIs(t, res.Err(), core.ErrModel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = Collect(New("Tester", model.NewMockModel("mock")).Run(ctx, "q", nil), nil)
	assert.ErrorIs(t, res.Err(), core.ErrCancellation)
}
