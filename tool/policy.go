package tool

import (
	"strings"

	"github.com/hupe1980/jubilee/core"
)

// Decision is the outcome of a pre-execution policy. Reason is returned to
// the model verbatim as the tool result when Allow is false.
type Decision struct {
	Allow  bool
	Reason string
}

// Allow permits the call.
func Allow() Decision { return Decision{Allow: true} }

// Deny refuses the call with a model-readable reason.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Policy decides whether a tool call may proceed. Policies must not invoke
// the tool and must be safe for concurrent use.
type Policy interface {
	Name() string
	Evaluate(toolCtx *core.ToolContext, toolName string, args map[string]any) Decision
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc struct {
	PolicyName string
	Fn         func(toolCtx *core.ToolContext, toolName string, args map[string]any) Decision
}

// Name implements Policy.
func (p PolicyFunc) Name() string { return p.PolicyName }

// Evaluate implements Policy.
func (p PolicyFunc) Evaluate(toolCtx *core.ToolContext, toolName string, args map[string]any) Decision {
	return p.Fn(toolCtx, toolName, args)
}

// Binding attaches an ordered list of policies to the tools selected by Match.
type Binding struct {
	Match    func(toolName string) bool
	Policies []Policy
}

// Bind is a convenience constructor for Binding.
func Bind(match func(toolName string) bool, policies ...Policy) Binding {
	return Binding{Match: match, Policies: policies}
}

// MatchNames selects tools by exact name.
func MatchNames(names ...string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(toolName string) bool {
		_, ok := set[toolName]
		return ok
	}
}

// MatchContains selects tools whose name contains any of the fragments.
func MatchContains(fragments ...string) func(string) bool {
	return func(toolName string) bool {
		lower := strings.ToLower(toolName)
		for _, f := range fragments {
			if strings.Contains(lower, strings.ToLower(f)) {
				return true
			}
		}
		return false
	}
}

// policiesFor collects the policies of every binding matching toolName, in
// binding order.
func policiesFor(bindings []Binding, toolName string) []Policy {
	var out []Policy
	for _, b := range bindings {
		if b.Match != nil && b.Match(toolName) {
			out = append(out, b.Policies...)
		}
	}
	return out
}
