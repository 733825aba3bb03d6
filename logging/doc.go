// Package logging provides a minimal logging interface and adapters for the
// jubilee runtime.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that agents, executors and orchestrators use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping a caller supplied *slog.Logger
//   - StructuredLogger with component / run scoping
//   - Component and ForRun, which scope any Logger that supports it
//   - LogToolCall, LogModelCall, LogRun and LogDispatch record helpers
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a := agent.New("assistant", llm, func(o *agent.Options) {
//		o.Logger = logging.Component(logger, "agent")
//	})
package logging
