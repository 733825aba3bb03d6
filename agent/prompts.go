package agent

import (
	"fmt"
	"strings"
	"time"
)

// AuthErrorMessage is shown instead of a raw error when the model rejects
// or lacks credentials.
const AuthErrorMessage = "My voice is faint. Please visit The Synod to grant me an API Key for the selected model."

const continueDirective = "Continue working toward answering the query. If you have gathered actual content " +
	"(not just links or titles), you may respond. For browser tasks: seeing a link is NOT the same as reading it - " +
	"you must open it before relying on it. NEVER guess at URLs - use ONLY URLs you have actually seen."

// iterationPrompt is the user turn of every reasoning step.
func iterationPrompt(query, toolResults, status string) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	if strings.TrimSpace(toolResults) != "" {
		b.WriteString("\n\nData retrieved from tool calls:\n")
		b.WriteString(toolResults)
	}
	if status != "" {
		b.WriteString("\n\n")
		b.WriteString(status)
	}
	b.WriteString("\n\n")
	b.WriteString(continueDirective)
	return b.String()
}

// finalAnswerPrompt forces a textual answer once the iteration budget is spent.
func finalAnswerPrompt(query, toolResults string) string {
	if strings.TrimSpace(toolResults) == "" {
		toolResults = "(no data was retrieved)"
	}
	return fmt.Sprintf(`Query: %s

Data retrieved from your tool calls:
%s

Answer the user's query using this data. Do not ask the user to provide additional data, paste values, or reference JSON/API internals. If data is incomplete, answer with what you have.`, query, toolResults)
}

// usageStatus is the graceful-exit flag added to the prompt of the last
// iteration.
func usageStatus(iteration, max int) string {
	if iteration < max {
		return ""
	}
	return fmt.Sprintf(
		"Tool usage status: this is iteration %d of %d. Do not call more tools unless strictly necessary; answer now with the data you have.",
		iteration, max,
	)
}

// formatToolResult renders one call for the accumulated context.
func formatToolResult(name, args, output string, failed bool) string {
	if args == "" {
		args = "{}"
	}
	if failed {
		output = "Error: " + output
	}
	return fmt.Sprintf("### %s(%s)\n%s\n\n", name, args, output)
}

// CurrentDate formats the date the way system prompts present it.
func CurrentDate(now time.Time) string {
	return now.Format("Monday, January 2, 2006")
}
