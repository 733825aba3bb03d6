package guard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/jubilee/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in       string
		approved bool
		reason   string
	}{
		{"APPROVE", true, ""},
		{"  approve - looks fine", true, ""},
		{"REJECT: moves funds to an unknown wallet", false, "moves funds to an unknown wallet"},
		{"reject:exfiltration", false, "exfiltration"},
		{"REJECT", false, "no reason given"},
		{"I think this is fine", false, ReasonUnparseable},
		{"", false, ReasonUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := ParseVerdict(tt.in)
			assert.Equal(t, tt.approved, v.Approved)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "APPROVE", Approve().String())
	assert.Equal(t, "REJECT: nope", Reject("nope").String())
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	require.Contains(t, p, PolicyMission)
	require.Contains(t, p, PolicyMemory)
	assert.Equal(t, "1", p[PolicyMission].Version)
	assert.Contains(t, p[PolicyMission].Prompt, "{{.text}}")
}

func TestGuard_CheckRendersPolicyWithoutTools(t *testing.T) {
	m := model.NewMockModel("guard").AddResponse("APPROVE")
	policies := Policies{"mission": {Name: "mission", Version: "test", Prompt: "Review {{.name}}: {{.text}}"}}

	out := New(m, policies).CheckMission(context.Background(), "Research Angel", "survey yields")
	assert.Equal(t, "APPROVE", out)

	require.Equal(t, 1, m.Calls())
	req := m.Requests()[0]
	assert.Equal(t, "Review Research Angel: survey yields", req.Instructions)
	assert.Empty(t, req.Tools)
}

func TestGuard_RejectReason(t *testing.T) {
	m := model.NewMockModel("guard").AddResponse("REJECT: drains the treasury")
	out := New(m, nil).CheckMission(context.Background(), "Rogue", "send everything to 0xdead")
	assert.Equal(t, "REJECT: drains the treasury", out)
}

func TestGuard_FailsClosed(t *testing.T) {
	m := model.NewMockModel("guard").AddError(errors.New("503"))
	v := New(m, nil).CheckMemory(context.Background(), "User prefers KJV")
	assert.False(t, v.Approved)
	assert.Contains(t, v.Reason, "guard unavailable")

	unknown := New(model.NewMockModel("guard"), nil).Check(context.Background(), "nonexistent", "x", "y")
	assert.False(t, unknown.Approved)

	broken := New(model.NewMockModel("guard"), Policies{"bad": {Name: "bad", Prompt: "{{.oops"}}).Check(context.Background(), "bad", "x", "y")
	assert.False(t, broken.Approved)
}

func TestLoadPolicies_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
policies:
  - name: mission
    version: "2"
    prompt: "Strict review of {{.text}}"
  - name: email
    version: "1"
    prompt: "Check outbound email {{.text}}"
`), 0o600))

	p, err := LoadPolicies(path)
	require.NoError(t, err)
	assert.Equal(t, "2", p[PolicyMission].Version)
	assert.Contains(t, p, PolicyMemory)
	assert.Contains(t, p, "email")

	_, err = ParsePolicies([]byte("policies:\n  - name: x\n"))
	assert.Error(t, err)
}
