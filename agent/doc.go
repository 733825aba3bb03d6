// Package agent implements the single-loop reasoning/acting engine.
//
// An Agent repeatedly prompts a model with the original query, the text of
// every tool result gathered so far and, near the end of its budget, a
// status line asking it to wrap up. Tool calls requested by the model run
// through a tool.Executor (policies first, panics recovered, per-call
// timeout) and their results are fed back as data. A plain-text response
// ends the run with a done event.
//
// Guarantees of every run:
//   - exactly one terminal event (done, error or aborted), always last
//   - done.Iterations never exceeds MaxIterations; when the budget runs out a
//     forced final-answer pass produces done with Forced set
//   - tool failures never abort the run; only model failures are fatal
//   - cancellation or the run timeout ends the stream with aborted
//   - the caller's history is appended to only after a successful done
package agent
