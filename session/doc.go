// Package session stores the ChatHistory of each conversation between runs.
// The runner loads a history before a run and saves it once the run has
// ended. InMemoryStore keeps histories in process; RedisStore persists them
// as JSON so conversations survive restarts.
package session
