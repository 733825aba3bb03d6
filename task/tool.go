package task

import (
	"fmt"
	"strings"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/tool"
)

const maxNoteLength = 2000

type contextArgs struct {
	TaskID int64  `json:"task_id" description:"Identifier of the task."`
	Note   string `json:"note,omitempty" description:"Optional progress summary to append to the task context."`
}

// NewContextTool exposes a Store as the task_context tool. Without a note it
// returns the task's resumable context; with a note it records a new summary.
func NewContextTool(store Store) tool.Tool {
	return tool.NewTypedTool(
		string(tool.CapTaskContext),
		"Read the saved context of a long-running task, or record a progress note for it.",
		func(toolCtx *core.ToolContext, args contextArgs) (any, error) {
			taskID := args.TaskID

			if note := args.Note; strings.TrimSpace(note) != "" {
				if err := store.Append(toolCtx.Context(), taskID, NewSummary(truncate(strings.TrimSpace(note), maxNoteLength))); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Progress note saved for task #%d.", taskID), nil
			}

			summaries, err := store.Load(toolCtx.Context(), taskID)
			if err != nil {
				return nil, err
			}
			if len(summaries) == 0 {
				return fmt.Sprintf("No saved context for task #%d.", taskID), nil
			}
			return FormatContext(taskID, summaries), nil
		},
	)
}
