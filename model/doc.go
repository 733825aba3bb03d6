// Package model defines the provider-agnostic abstractions for talking to chat
// models inside the jubilee runtime.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Classify authentication failures independent of the provider SDK
//   - Facilitate deterministic tests (MockModel, Func)
//
// Providers (openai, anthropic) implement Model in sub-packages; the provider
// package picks one from a model identifier and Credentials.
package model
