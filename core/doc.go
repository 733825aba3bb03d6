// Package core provides the foundational domain types and execution contexts
// shared by every part of the jubilee runtime. It defines:
//
//   - Events (the tagged AgentEvent variant streamed to callers)
//   - ChatHistory (caller owned conversation turns)
//   - RunContext / ToolContext (scoped execution for agents and tools)
//   - IterationBudget (bounded loop counter)
//   - The error taxonomy used across agents, tools and dispatchers
//
// The package keeps implementation concerns (model adapters, tool
// implementations, persistence) out of scope so higher layers can depend on
// small, stable types.
package core
