package runner

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/jubilee/agent"
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/internal/testutil"
	"github.com/hupe1980/jubilee/model"
	"github.com/hupe1980/jubilee/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunner_RunAndSaveHistory(t *testing.T) {
	sessions := session.NewInMemoryStore()
	llm := model.NewMockModel("mock").AddResponse("first").AddResponse("second")
	r := New(func(o *Options) { o.Sessions = sessions })
	r.Register(agent.New("assistant", llm))

	res, err := r.RunSync(context.Background(), "s1", "assistant", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", res.Answer)

	res, err = r.RunSync(context.Background(), "s1", "assistant", "again", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", res.Answer)

	h, err := sessions.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 4, h.Len())
	assert.Equal(t, "hello", h.Messages()[0].Content)
	assert.Equal(t, "second", h.Messages()[3].Content)

	// The second model call saw the first turn.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.GreaterOrEqual(t, len(reqs[1].Messages), 2)
}

func TestRunner_UnknownAgent(t *testing.T) {
	r := New()
	_, _, err := r.Run(context.Background(), "s", "missing", "q")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestRunner_StampsRunID(t *testing.T) {
	r := New()
	r.Register(testutil.NewAnsweringAgent("scripted", "ok", 1))

	runID, events, err := r.Run(context.Background(), "s", "scripted", "q")
	require.NoError(t, err)
	var seen []core.Event
	res := agent.Collect(events, func(ev core.Event) { seen = append(seen, ev) })
	require.NoError(t, res.Err())
	require.Len(t, seen, 2)
	for _, ev := range seen {
		assert.Equal(t, runID, ev.RunID)
	}
	assert.Equal(t, 0, r.Active())
}

func TestRunner_SessionBusy(t *testing.T) {
	r := New()
	r.Register(&testutil.ScriptedAgent{AgentName: "blocking", Block: true})

	runID, events, err := r.Run(context.Background(), "s", "blocking", "q")
	require.NoError(t, err)

	_, _, err = r.Run(context.Background(), "s", "blocking", "q")
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Equal(t, 1, r.Active())

	require.NoError(t, r.Cancel(runID))
	res := agent.Collect(events, nil)
	assert.Equal(t, core.EventAborted, res.Terminal.Type)

	// The session is free again once the stream is closed.
	r.Register(testutil.NewAnsweringAgent("quick", "done", 1))
	_, err = r.RunSync(context.Background(), "s", "quick", "q", nil)
	assert.NoError(t, err)
}

func TestRunner_CancelUnknown(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Cancel("nope"), ErrRunNotFound)
}

func TestRunner_RunTimeout(t *testing.T) {
	r := New(func(o *Options) { o.RunTimeout = 20 * time.Millisecond })
	r.Register(&testutil.ScriptedAgent{AgentName: "blocking", Block: true})

	_, err := r.RunSync(context.Background(), "s", "blocking", "q", nil)
	assert.Equal(t, core.KindCancellation, core.KindOf(err))
}

func TestRunner_ConcurrencyLimit(t *testing.T) {
	r := New(func(o *Options) { o.MaxConcurrentRuns = 1 })
	r.Register(&testutil.ScriptedAgent{AgentName: "blocking", Block: true})

	runID, events, err := r.Run(context.Background(), "a", "blocking", "q")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = r.Run(ctx, "b", "blocking", "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, r.Cancel(runID))
	agent.Collect(events, nil)
}

func TestRunner_FailedRunDoesNotSave(t *testing.T) {
	sessions := session.NewInMemoryStore()
	r := New(func(o *Options) { o.Sessions = sessions })
	r.Register(testutil.NewFailingAgent("broken", "Model call failed: boom"))

	_, err := r.RunSync(context.Background(), "s", "broken", "q", nil)
	assert.Equal(t, core.KindModel, core.KindOf(err))
	h, err := sessions.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Zero(t, h.Len())
}

func TestRunner_Agents(t *testing.T) {
	r := New()
	r.Register(testutil.NewAnsweringAgent("b", "", 1), testutil.NewAnsweringAgent("a", "", 1))
	assert.Equal(t, []string{"a", "b"}, r.Agents())
}

func TestRunner_SessionFreeAtTerminal(t *testing.T) {
	r := New()
	r.Register(testutil.NewAnsweringAgent("scripted", "ok", 1))

	_, events, err := r.Run(context.Background(), "s", "scripted", "first")
	require.NoError(t, err)
	for ev := range events {
		if ev.IsTerminal() {
			break
		}
	}

	_, next, err := r.Run(context.Background(), "s", "scripted", "second")
	require.NoError(t, err)
	assert.Equal(t, "ok", agent.Collect(next, nil).Answer)

	for range events {
	}
}
