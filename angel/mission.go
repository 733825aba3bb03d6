package angel

import (
	"fmt"
	"strings"

	"github.com/hupe1980/jubilee/tool"
)

// Mission is the input of one dispatch. Explicit fields override the
// defaults of the role template named by Role.
type Mission struct {
	Role         string
	Name         string
	Text         string
	Capabilities []tool.Capability
	SkillFocus   string
	Iterations   int
	TaskID       int64
}

// MissionFromArgs decodes the dispatch_angel tool arguments.
func MissionFromArgs(args map[string]any) (Mission, error) {
	var m Mission

	m.Role, _ = args["role"].(string)
	m.Name, _ = args["name"].(string)
	m.Text, _ = args["mission"].(string)
	m.SkillFocus, _ = args["skill_focus"].(string)

	switch caps := args["capabilities"].(type) {
	case nil:
	case []string:
		m.Capabilities = tool.ParseCapabilities(caps)
	case []any:
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			s, ok := c.(string)
			if !ok {
				return Mission{}, fmt.Errorf("capabilities must be strings, got %T", c)
			}
			names = append(names, s)
		}
		m.Capabilities = tool.ParseCapabilities(names)
	default:
		return Mission{}, fmt.Errorf("capabilities must be a list, got %T", caps)
	}

	if v, ok := args["iterations"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return Mission{}, fmt.Errorf("iterations: %w", err)
		}
		m.Iterations = int(n)
	}
	if v, ok := args["task_id"]; ok && v != nil {
		n, err := asInt(v)
		if err != nil {
			return Mission{}, fmt.Errorf("task_id: %w", err)
		}
		m.TaskID = n
	}

	m.Role = strings.TrimSpace(m.Role)
	m.Name = strings.TrimSpace(m.Name)
	m.Text = strings.TrimSpace(m.Text)
	m.SkillFocus = strings.TrimSpace(m.SkillFocus)
	return m, nil
}

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
