package skills

import (
	"fmt"
	"strings"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

// NewTool returns the skill tool. Its description lists the available skills
// so the model can pick one by name.
func NewTool(lib *Library) tool.Tool {
	var desc strings.Builder
	desc.WriteString("Load the instructions of a specialized skill before working on a matching task.")
	if names := lib.Names(); len(names) > 0 {
		desc.WriteString("\nAvailable skills:")
		for _, n := range names {
			s, _ := lib.Get(n)
			fmt.Fprintf(&desc, "\n- %s: %s", s.Name, s.Description)
		}
	}

	return tool.NewFunctionTool(
		string(tool.CapSkill),
		desc.String(),
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"skill": map[string]any{"type": "string", "description": "Name of the skill to load."},
			},
			"required": []string{"skill"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			name, _ := args["skill"].(string)
			s, ok := lib.Get(strings.TrimSpace(name))
			if !ok {
				return nil, tool.NewToolError(string(tool.CapSkill),
					fmt.Sprintf("skill %q not found. Available: %s", name, strings.Join(lib.Names(), ", ")),
					tool.CodeExecution)
			}
			toolCtx.LogDebug("skill.loaded", "skill", s.Name)
			return fmt.Sprintf("## Skill: %s\n\n%s", s.Name, s.Instructions), nil
		},
	)
}
