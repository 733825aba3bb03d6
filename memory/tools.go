package memory

import (
	"fmt"
	"strings"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/guard"
	"github.com/hupe1980/jubilee/tool"
)

// SensitiveKeywords make recall_memories refuse a query.
var SensitiveKeywords = []string{"password", "secret key", "private key", "ssn", "credit card"}

const (
	blockedPrefix = "⛔ MEMORY BLOCKED BY THE PROPHET: "
	securityAlert = "⛔ SECURITY ALERT: Query contains sensitive keywords. Access denied."
	defaultRecall = 5
)

type rememberArgs struct {
	Fact string   `json:"fact" description:"The content to remember."`
	Tags []string `json:"tags,omitempty" description:"Tags to categorize this memory (e.g. user_preference)."`
}

type recallArgs struct {
	Query string `json:"query" description:"The search query."`
	Limit int    `json:"limit,omitempty" description:"Number of results to return (default 5)."`
}

// NewRememberTool returns the remember_fact tool. Every fact is checked
// against the guard's memory policy first.
func NewRememberTool(store Store, checker guard.Checker) tool.Tool {
	return tool.NewTypedTool(
		string(tool.CapRememberFact),
		"Store an important fact, event, or piece of information in long-term memory. Use this for things you need to remember later, like user preferences, specific events, or research findings.",
		func(toolCtx *core.ToolContext, args rememberArgs) (any, error) {
			fact, tags := args.Fact, args.Tags

			verdict := checker.Check(toolCtx.Context(), guard.PolicyMemory, "memory", fact)
			if !verdict.Approved {
				toolCtx.LogInfo("memory.blocked", "reason", verdict.Reason)
				return blockedPrefix + verdict.String(), nil
			}

			id, err := store.Remember(toolCtx.Context(), fact, tags, "agent_tool")
			if err != nil {
				return nil, fmt.Errorf("failed to store fact: %w", err)
			}
			return "Fact stored successfully. Memory ID: " + id, nil
		},
	)
}

// NewRecallTool returns the recall_memories tool.
func NewRecallTool(store Store) tool.Tool {
	return tool.NewTypedTool(
		string(tool.CapRecallMemories),
		"Search long-term memory for relevant facts or events based on a query. Use this to find past information.",
		func(toolCtx *core.ToolContext, args recallArgs) (any, error) {
			query := args.Query
			if IsSensitive(query) {
				toolCtx.LogInfo("memory.recall.refused")
				return securityAlert, nil
			}
			limit := defaultRecall
			if args.Limit > 0 {
				limit = args.Limit
			}

			results, err := store.Recall(toolCtx.Context(), query, limit)
			if err != nil {
				return nil, fmt.Errorf("failed to recall memories: %w", err)
			}
			if len(results) == 0 {
				return "No relevant memories found.", nil
			}
			lines := make([]string, len(results))
			for i, r := range results {
				lines[i] = fmt.Sprintf("- %q (Relevance: %.2f)", r.Text, r.Score)
			}
			return strings.Join(lines, "\n"), nil
		},
	)
}

// IsSensitive reports whether query mentions one of SensitiveKeywords.
func IsSensitive(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range SensitiveKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
