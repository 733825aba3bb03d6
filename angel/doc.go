// Package angel dispatches Angels: capability-scoped sub-agents built from a
// role template or ad-hoc parameters, gated by the SafetyGuard and run with a
// fresh history. A mission passes, in order, the recursion depth check, the
// role's mode gate, capability resolution against the tool registry and the
// guard before any sub-agent exists. Optional task context is resumed into
// the system prompt and extended after the run.
//
// Example:
//
//	d := angel.New(llm, registry, g, angel.DefaultRoles(), func(o *angel.Options) {
//		o.Modes = angel.Modes{Stewardship: true}
//		o.Tasks = task.NewMemoryStore()
//	})
//	report := d.Dispatch(ctx, angel.Mission{Role: "ResearchAngel", Text: "Compare staking yields"})
package angel
