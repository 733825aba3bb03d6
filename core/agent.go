package core

import "context"

// Agent is anything that answers a query against a chat history and streams
// its progress as events.
//
// Run returns immediately; the stream ends with exactly one terminal event
// (done, error or aborted) and is then closed. Callers must drain the
// channel. The history is read during the run and appended to at most once,
// after the terminal event, and only when the run succeeded.
type Agent interface {
	Name() string
	Run(ctx context.Context, query string, history *ChatHistory) <-chan Event
}
