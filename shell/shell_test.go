package shell

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/policy"
	"github.com/hupe1980/jubilee/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
}

func TestCheck(t *testing.T) {
	e := New()
	tests := []struct {
		command string
		want    string
	}{
		{"echo hi", ""},
		{"forge test --gas-report", ""},
		{"python3 -c 'print(1)'", "⛔ Command rejected: 'python3' is not in the allowlist"},
		{"", "⛔ Command rejected: '' is not in the allowlist"},
		{"git push origin main", "matches blocked pattern"},
		{"find . -exec sudo rm {} ;", "matches blocked pattern"},
		{"cat x | grep y; rm -rf /", "matches blocked pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := e.Check(tt.command)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestRun(t *testing.T) {
	skipWithoutShell(t)
	e := New()

	out := e.Run(context.Background(), "echo hello", "", 0)
	assert.Equal(t, "✅ Command succeeded:\n```\nhello\n\n```", out)

	out = e.Run(context.Background(), "ls /definitely/not/here", "", 0)
	assert.True(t, strings.HasPrefix(out, "❌ Command failed (exit "), out)
}

func TestRun_Timeout(t *testing.T) {
	skipWithoutShell(t)
	e := New(func(o *Options) { o.Allowlist = []string{"sleep"} })

	out := e.Run(context.Background(), "sleep 5", "", 50*time.Millisecond)
	assert.True(t, strings.HasPrefix(out, "⏱️ Command timed out"), out)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", MaxOutput+10)
	got := truncate(long)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("x", MaxOutput)))
	assert.Contains(t, got, "full output was 4010 chars")
}

func TestTool_ConfirmationBinding(t *testing.T) {
	skipWithoutShell(t)
	exec := tool.NewExecutor(
		[]tool.Tool{NewTool(New())},
		func(o *tool.ExecutorOptions) {
			o.Bindings = []tool.Binding{
				tool.Bind(tool.MatchNames(string(tool.CapCodeExec)), policy.NewConfirmationPolicy("")),
			}
		},
	)

	unconfirmed := core.NewRunContext(context.Background(), "r1", "builder", "run the tests", nil)
	res := exec.Execute(unconfirmed, tool.Call{ID: "1", Name: "code_exec", Args: map[string]any{"command": "echo hi"}})
	assert.True(t, res.Denied)
	assert.Contains(t, res.Output, "⛔ CONFIRMATION REQUIRED")

	confirmed := core.NewRunContext(context.Background(), "r2", "builder", "CONFIRM run the tests", nil)
	res = exec.Execute(confirmed, tool.Call{ID: "2", Name: "code_exec", Args: map[string]any{"command": "echo hi"}})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "✅ Command succeeded")
}
