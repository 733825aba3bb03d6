package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}

func TestStructuredLogger_ScopedAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	scoped := base.WithComponent("angel").WithRun("run-1").With("depth", 2)
	scoped.Info("angel.dispatch.start", "angel", "ResearchAngel")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "angel.dispatch.start", entry["msg"])
	assert.Equal(t, "angel", entry["component"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, float64(2), entry["depth"])
	assert.Equal(t, "ResearchAngel", entry["angel"])

	// the parent logger is not affected by scoping
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "run_id")
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestLogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Output: &buf})

	LogToolCall(l, "web_search", 5*time.Millisecond, false, errors.New("boom"))

	out := buf.String()
	assert.True(t, strings.Contains(out, "tool.call.failed"))
	assert.Contains(t, out, "tool_name=web_search")
	assert.Contains(t, out, "error=boom")

	buf.Reset()
	LogToolCall(l, "transfer_funds", time.Millisecond, true, nil)
	assert.Contains(t, buf.String(), "tool.call.completed")
	assert.Contains(t, buf.String(), "denied=true")
}

func TestComponentAndForRun(t *testing.T) {
	var buf bytes.Buffer
	var l Logger = NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	LogDispatch(ForRun(Component(l, "angel"), "run-9"), "Scout", 1, time.Second, "completed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "angel.dispatch.complete", entry["msg"])
	assert.Equal(t, "angel", entry["component"])
	assert.Equal(t, "run-9", entry["run_id"])
	assert.Equal(t, "completed", entry["outcome"])

	noop := NoOpLogger{}
	assert.Equal(t, Logger(noop), Component(noop, "angel"))
	assert.Equal(t, Logger(noop), ForRun(noop, "r"))
}

func TestLogModelCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})

	LogModelCall(l, "gpt-4o-mini", 2, 10*time.Millisecond, nil)
	LogRun(l, "Jubilee", 3, time.Second, "done")

	out := buf.String()
	assert.Contains(t, out, "model.call.completed")
	assert.Contains(t, out, "tool_calls=2")
	assert.Contains(t, out, "agent.run.complete")
	assert.Contains(t, out, "outcome=done")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", "k", "v")
		l.Warn("x")
		l.Error("x")
	})
}
