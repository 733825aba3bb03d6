package angel

import (
	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

// NewDispatchTool exposes d as the dispatch_angel tool. Refusals and reports
// are returned as the tool output.
func NewDispatchTool(d *Dispatcher) tool.Tool {
	roles := d.Roles().Keys()
	roleEnum := make([]any, len(roles))
	for i, r := range roles {
		roleEnum[i] = r
	}

	return tool.NewFunctionTool(
		string(tool.CapDispatchAngel),
		"Dispatch a specialized Angel to perform a complex task. Use this for parallel research, deep-dive coding, or verification steps that require focus. Pick a role for a pre-configured archetype or give a name and capabilities for an ad-hoc angel.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"role": map[string]any{
					"type":        "string",
					"description": "Optional role template providing default capabilities and framing.",
					"enum":        roleEnum,
				},
				"name": map[string]any{
					"type":        "string",
					"description": `Name of the Angel (e.g., "Research Angel"). Defaults to the role name.`,
				},
				"mission": map[string]any{
					"type":        "string",
					"description": "Detailed mission description.",
				},
				"capabilities": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Tools the Angel needs access to. Defaults to the role's capabilities.",
				},
				"skill_focus": map[string]any{
					"type":        "string",
					"description": "Optional skill whose instructions the Angel should follow.",
				},
				"iterations": map[string]any{
					"type":        "integer",
					"description": "Max iterations (default: role budget or 10).",
				},
				"task_id": map[string]any{
					"type":        "integer",
					"description": "Optional task whose saved context the Angel resumes and updates.",
				},
			},
			"required": []string{"mission"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			m, err := MissionFromArgs(args)
			if err != nil {
				return nil, tool.NewToolError(string(tool.CapDispatchAngel), err.Error(), tool.CodeValidation)
			}
			return d.Dispatch(toolCtx.Context(), m), nil
		},
	)
}
