package tool

import (
	"fmt"
	"sync"
)

// Registry is the closed set of tools available to a process. It is built
// explicitly at startup and passed to the components that bind tools; it is
// safe for concurrent reads once populated.
type Registry struct {
	mu    sync.RWMutex
	tools map[Capability]Tool
	order []Capability
}

// NewRegistry creates a registry pre-populated with tools. Duplicate names
// panic since they indicate a wiring bug at startup.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[Capability]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a tool under its own name.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool registry: tool must have a name")
	}
	c := Capability(t.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[c]; exists {
		return fmt.Errorf("tool registry: duplicate tool %q", c)
	}
	r.tools[c] = t
	r.order = append(r.order, c)
	return nil
}

// Get returns the tool registered for c.
func (r *Registry) Get(c Capability) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[c]
	return t, ok
}

// Has reports whether c resolves to a registered tool.
func (r *Registry) Has(c Capability) bool {
	_, ok := r.Get(c)
	return ok
}

// All returns every registered tool in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, r.tools[c])
	}
	return out
}

// Capabilities returns the registered capability identifiers in registration order.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Capability(nil), r.order...)
}

// Resolve maps capabilities to tools. Capabilities without a registered tool
// are returned in unknown, in request order; the caller decides whether that
// is fatal.
func (r *Registry) Resolve(caps []Capability) (tools []Tool, unknown []Capability) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range caps {
		if t, ok := r.tools[c]; ok {
			tools = append(tools, t)
			continue
		}
		unknown = append(unknown, c)
	}
	return tools, unknown
}

// ToolsForRole returns the registered tools granted to an orchestration role.
// RoleWill receives every registered tool.
func (r *Registry) ToolsForRole(role Role) []Tool {
	if role == RoleWill {
		return r.All()
	}
	tools, _ := r.Resolve(roleCapabilities[role])
	return tools
}
