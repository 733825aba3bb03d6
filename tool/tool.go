// Package tool implements the tool calling subsystem that lets agents invoke
// named capabilities with schema validated arguments. It owns the Tool
// contract, the capability registry, and the Executor that runs pre-execution
// policies before any tool is invoked.
package tool

import (
	"fmt"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/internal/util"
	"github.com/hupe1980/jubilee/model"
)

// Tool defines a capability an agent may invoke through function calling.
//
// Implementations must be safe for concurrent use: the same Tool value is
// shared by every run that binds it.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to explain when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Call executes the tool. Arguments are already decoded from the
	// model's JSON payload.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeValidation     = "VALIDATION_ERROR"
	CodeExecution      = "EXECUTION_ERROR"
	CodePanic          = "PANIC"
	CodeTimeout        = "TIMEOUT"
	CodeInvalidPayload = "INVALID_ARGUMENTS"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap lets errors.Is match the ToolExecutionError kind.
func (e *ToolError) Unwrap() error { return core.ErrToolExecution }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Definitions converts tools into the function declarations sent to a model.
func Definitions(tools []Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
