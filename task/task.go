// Package task persists cross-run task context: for each task identifier a
// capped, FIFO list of session summaries. Angels read it before a mission
// and append to it afterwards so long-running work can resume.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxEntries is the number of summaries kept per task; older ones are evicted first.
const MaxEntries = 5

// BlockedPrefix marks summaries of missions that were blocked.
const BlockedPrefix = "BLOCKED: "

// ErrInvalidTaskID is returned for non-positive task identifiers.
var ErrInvalidTaskID = errors.New("task id must be positive")

// SessionSummary is one entry of a task's context.
type SessionSummary struct {
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
}

// NewSummary stamps a summary with the current time.
func NewSummary(summary string) SessionSummary {
	return SessionSummary{Timestamp: time.Now().UTC(), Summary: summary}
}

// Blocked creates a summary recording why a mission was blocked.
func Blocked(reason string) SessionSummary {
	return NewSummary(BlockedPrefix + reason)
}

// Store loads and appends task context. Load returns at most MaxEntries
// summaries, oldest first; Append evicts the oldest entries beyond MaxEntries.
// Implementations are safe for concurrent use.
type Store interface {
	Load(ctx context.Context, taskID int64) ([]SessionSummary, error)
	Append(ctx context.Context, taskID int64, summary SessionSummary) error
}

func validateID(taskID int64) error {
	if taskID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTaskID, taskID)
	}
	return nil
}

// FormatContext renders summaries as the resumable-context prompt section.
func FormatContext(taskID int64, summaries []SessionSummary) string {
	if len(summaries) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Resumed Task Context (Task #%d)\n", taskID)
	b.WriteString("Previous sessions on this task, oldest first:\n")
	for i, s := range summaries {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, s.Timestamp.UTC().Format(time.RFC3339), s.Summary)
	}
	return b.String()
}

// truncate keeps summaries compact enough for prompts.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
