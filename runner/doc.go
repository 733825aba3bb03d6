// Package runner is the top-level execution layer. A Runner holds named
// agents (a plain agent, the Triune orchestrator, ...), resolves each run's
// conversation history from a session store, bounds the number of runs in
// flight and lets callers cancel a run by id.
//
// A session serves one run at a time: its history is only appended to after
// the run's terminal event, and the runner saves it once the stream ends.
package runner
