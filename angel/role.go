package angel

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hupe1980/jubilee/tool"
	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var defaultRolesYAML []byte

// overrideIterations is the budget of roles introduced by an override file.
const overrideIterations = 12

// RoleTemplate is a named bundle of defaults for a recurring angel archetype.
type RoleTemplate struct {
	Key          string
	Name         string
	Emoji        string
	Domain       string
	Capabilities []tool.Capability
	Iterations   int
	Prompt       string
	RequiredMode Mode
}

// Title renders the emoji and display name.
func (r RoleTemplate) Title() string {
	if r.Emoji == "" {
		return r.Name
	}
	return r.Emoji + " " + r.Name
}

// Roles maps role keys (e.g. "ContractAngel") to templates. It is built once
// and only read afterwards.
type Roles map[string]RoleTemplate

// Get returns the template for key.
func (r Roles) Get(key string) (RoleTemplate, bool) {
	t, ok := r[key]
	return t, ok
}

// Keys returns the role keys in sorted order.
func (r Roles) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type roleFile struct {
	Name         string   `yaml:"name"`
	Emoji        string   `yaml:"emoji"`
	Domain       string   `yaml:"domain"`
	Capabilities []string `yaml:"capabilities"`
	Iterations   int      `yaml:"iterations"`
	RequiredMode string   `yaml:"required_mode"`
	Prompt       string   `yaml:"prompt"`
}

// archetype is one entry of the angelArchetypes override section.
type archetype struct {
	Tools          []string `yaml:"tools"`
	MissionFraming string   `yaml:"missionFraming"`
	RequiredMode   string   `yaml:"requiredMode"`
	Emoji          string   `yaml:"emoji"`
	Domain         string   `yaml:"domain"`
}

// DefaultRoles returns the built-in role templates.
func DefaultRoles() Roles {
	roles, err := parseRoles(defaultRolesYAML)
	if err != nil {
		panic(fmt.Sprintf("angel: invalid embedded roles: %v", err))
	}
	return roles
}

func parseRoles(raw []byte) (Roles, error) {
	var files map[string]roleFile
	if err := yaml.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	roles := make(Roles, len(files))
	for key, f := range files {
		mode, err := ParseMode(f.RequiredMode)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", key, err)
		}
		roles[key] = RoleTemplate{
			Key:          key,
			Name:         f.Name,
			Emoji:        f.Emoji,
			Domain:       f.Domain,
			Capabilities: tool.ParseCapabilities(f.Capabilities),
			Iterations:   f.Iterations,
			Prompt:       strings.TrimSpace(f.Prompt),
			RequiredMode: mode,
		}
	}
	return roles, nil
}

// ApplyArchetypes merges an angelArchetypes document over base. Entries
// replace the matching role field by field and may introduce new roles.
func ApplyArchetypes(base Roles, raw []byte) (Roles, error) {
	var doc struct {
		AngelArchetypes map[string]archetype `yaml:"angelArchetypes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse angel archetypes: %w", err)
	}

	roles := make(Roles, len(base)+len(doc.AngelArchetypes))
	for k, v := range base {
		roles[k] = v
	}
	for key, a := range doc.AngelArchetypes {
		mode, err := ParseMode(a.RequiredMode)
		if err != nil {
			return nil, fmt.Errorf("archetype %s: %w", key, err)
		}
		prev, known := base[key]

		r := RoleTemplate{
			Key:          key,
			Name:         strings.Replace(key, "Angel", " Angel", 1),
			Emoji:        a.Emoji,
			Domain:       a.Domain,
			Capabilities: tool.ParseCapabilities(a.Tools),
			Iterations:   overrideIterations,
			Prompt:       strings.TrimSpace(a.MissionFraming),
			RequiredMode: mode,
		}
		if r.Emoji == "" {
			r.Emoji = "👼"
		}
		if known {
			r.Iterations = prev.Iterations
			if r.Domain == "" {
				r.Domain = prev.Domain
			}
			if len(r.Capabilities) == 0 {
				r.Capabilities = prev.Capabilities
			}
			if r.Prompt == "" {
				r.Prompt = prev.Prompt
			}
		}
		roles[key] = r
	}
	return roles, nil
}

// LoadRoles returns the defaults merged with the archetypes file at path.
// A missing file yields the defaults.
func LoadRoles(path string) (Roles, error) {
	roles := DefaultRoles()
	if path == "" {
		return roles, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return roles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read angel archetypes: %w", err)
	}
	return ApplyArchetypes(roles, raw)
}
