package policy

import (
	"fmt"
	"strings"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

// DefaultConfirmationToken is required in the user's message unless configured otherwise.
const DefaultConfirmationToken = "CONFIRM"

// ConfirmationPolicy requires a literal token in the most recent user
// utterance before a sensitive tool may run. The match is case-sensitive.
type ConfirmationPolicy struct {
	Token string
}

// NewConfirmationPolicy creates the policy; an empty token selects DefaultConfirmationToken.
func NewConfirmationPolicy(token string) *ConfirmationPolicy {
	if strings.TrimSpace(token) == "" {
		token = DefaultConfirmationToken
	}
	return &ConfirmationPolicy{Token: token}
}

// Name implements tool.Policy.
func (p *ConfirmationPolicy) Name() string { return "confirmation" }

// Evaluate implements tool.Policy.
func (p *ConfirmationPolicy) Evaluate(toolCtx *core.ToolContext, toolName string, _ map[string]any) tool.Decision {
	if strings.Contains(toolCtx.UserUtterance(), p.Token) {
		return tool.Allow()
	}
	return tool.Deny(fmt.Sprintf(
		"⛔ CONFIRMATION REQUIRED: '%s' is a sensitive action. Ask the user to reply with '%s' to proceed.",
		toolName, p.Token,
	))
}
