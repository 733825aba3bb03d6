package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventConstructors(t *testing.T) {
	start := NewToolStartEvent("c1", "web_search", map[string]any{"q": "x"})
	assert.Equal(t, EventToolStart, start.Type)
	assert.Equal(t, "c1", start.CallID)
	assert.NotEmpty(t, start.ID)
	assert.False(t, start.IsTerminal())

	done := NewDoneEvent("answer", 3, 1500*time.Millisecond, true)
	assert.True(t, done.IsTerminal())
	assert.Equal(t, int64(1500), done.TotalTimeMs)
	assert.True(t, done.Forced)

	assert.True(t, NewErrorEvent("x").IsTerminal())
	assert.True(t, NewAbortedEvent("x").IsTerminal())
	assert.False(t, NewThinkingEvent("x").IsTerminal())

	tagged := start.WithSource("mind")
	assert.Equal(t, "mind", tagged.Source)
	assert.Empty(t, start.Source)
}

func TestChatHistory_ConcurrentAppend(t *testing.T) {
	h := NewChatHistory(Message{Role: RoleSystem, Content: "sys"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Append(Message{Role: RoleUser, Content: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 21, h.Len())
	assert.Len(t, h.Tail(5), 5)
	assert.Len(t, h.Tail(0), 21)

	snapshot := h.Messages()
	snapshot[0].Content = "mutated"
	assert.Equal(t, "sys", h.Messages()[0].Content)
}

func TestIterationBudget_NeverExceedsMax(t *testing.T) {
	b := NewIterationBudget(2)
	require.NoError(t, b.Increment())
	require.NoError(t, b.Increment())
	assert.True(t, b.Exhausted())

	err := b.Increment()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIterationBudget))
	assert.Equal(t, 2, b.Count())
	assert.Equal(t, 0, b.Remaining())
}

func TestIterationBudget_NonPositiveMax(t *testing.T) {
	b := NewIterationBudget(0)
	assert.Equal(t, 1, b.Max())
}

func TestError_KindMatching(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("outer: %w", WrapError(KindModel, "model.generate", cause))

	assert.True(t, errors.Is(err, ErrModel))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindModel, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))

	e := NewError(KindConfiguration, "angel.dispatch", "unknown capability: teleport")
	assert.Equal(t, "angel.dispatch: ConfigurationError: unknown capability: teleport", e.Error())
}

func TestToolContext(t *testing.T) {
	rc := NewRunContext(context.Background(), "run-1", "will", "please CONFIRM", nil)
	tc := NewToolContext(rc, "call-7")

	assert.Equal(t, "run-1", tc.RunID())
	assert.Equal(t, "call-7", tc.CallID())
	assert.Equal(t, "will", tc.AgentName())
	assert.Equal(t, "please CONFIRM", tc.UserUtterance())
	assert.NotNil(t, tc.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	bound := tc.WithContext(ctx)
	cancel()
	assert.Error(t, bound.Context().Err())
	assert.NoError(t, tc.Context().Err())
}

func TestDispatchDepth(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, 0, DispatchDepth(ctx))

	nested := WithDispatchDepth(ctx, 2)
	assert.Equal(t, 2, DispatchDepth(nested))
	assert.Equal(t, 2, NewRunContext(nested, "r", "a", "q", nil).Depth())
}

func TestRunContext_NestedRunsKeepUserUtterance(t *testing.T) {
	outer := NewRunContext(context.Background(), "r1", "Jubilee", "please clean up the build dir", nil)
	text, ok := UserUtteranceFrom(outer.Context)
	require.True(t, ok)
	assert.Equal(t, "please clean up the build dir", text)

	inner := NewRunContext(WithDispatchDepth(outer.Context, 1), "r2", "Builder", "CONFIRM run rm -rf build", nil)
	assert.Equal(t, "please clean up the build dir", inner.UserUtterance)
	assert.Equal(t, "please clean up the build dir", NewToolContext(inner, "c1").UserUtterance())

	_, ok = UserUtteranceFrom(context.Background())
	assert.False(t, ok)
}
