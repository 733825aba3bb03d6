package core

import "sync"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleSystem marks system instructions.
	RoleSystem Role = "system"
	// RoleUser marks user turns.
	RoleUser Role = "user"
	// RoleAssistant marks model turns.
	RoleAssistant Role = "assistant"
)

// Message is a single (role, content) conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatHistory is an ordered sequence of turns owned by the caller across runs.
// Agents only read it while looping and append the query and final answer
// once, after a successful terminal event. It is safe for concurrent use.
type ChatHistory struct {
	mu       sync.RWMutex
	messages []Message
}

// NewChatHistory creates a history seeded with the given turns.
func NewChatHistory(msgs ...Message) *ChatHistory {
	h := &ChatHistory{}
	h.messages = append(h.messages, msgs...)
	return h
}

// Messages returns a snapshot copy of the turns.
func (h *ChatHistory) Messages() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Append adds turns atomically.
func (h *ChatHistory) Append(msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
}

// Len returns the number of turns.
func (h *ChatHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Tail returns at most n trailing turns (all turns when n <= 0).
func (h *ChatHistory) Tail(n int) []Message {
	msgs := h.Messages()
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
