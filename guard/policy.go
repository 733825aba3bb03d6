package guard

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in policy names.
const (
	PolicyMission = "mission"
	PolicyMemory  = "memory"
)

// Policy is versioned guard content. Prompt is a text/template rendered
// with .name (the subject, e.g. the Angel name) and .text (the content under
// review).
type Policy struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Prompt  string `yaml:"prompt"`
}

// Policies indexes policies by name.
type Policies map[string]Policy

type policyFile struct {
	Policies []Policy `yaml:"policies"`
}

//go:embed policies.yaml
var defaultPolicies []byte

// DefaultPolicies returns the embedded mission and memory policies.
func DefaultPolicies() Policies {
	p, err := ParsePolicies(defaultPolicies)
	if err != nil {
		panic(fmt.Sprintf("guard: embedded policies: %v", err))
	}
	return p
}

// ParsePolicies decodes a YAML policy document.
func ParsePolicies(raw []byte) (Policies, error) {
	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse guard policies: %w", err)
	}
	out := make(Policies, len(doc.Policies))
	for i, p := range doc.Policies {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("parse guard policies: entry %d has no name", i)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, fmt.Errorf("parse guard policies: %q has an empty prompt", p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}

// LoadPolicies reads a policy file and layers it over the defaults. An empty
// path returns the defaults.
func LoadPolicies(path string) (Policies, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guard policies: %w", err)
	}
	overrides, err := ParsePolicies(raw)
	if err != nil {
		return nil, err
	}
	for name, p := range overrides {
		policies[name] = p
	}
	return policies, nil
}
