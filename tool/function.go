package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/hupe1980/jubilee/internal/util"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the declared schema before the function
// runs. Failures are normalized to *ToolError:
//
//	VALIDATION_ERROR -> schema / argument mismatch
//	EXECUTION_ERROR  -> the function returned a plain error
//	custom codes are preserved when the function returns *ToolError itself
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	balance := NewFunctionTool(
//	  "get_balance",
//	  "Return the native balance of an address",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "address": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"address"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return lookup(tc.Context(), args["address"].(string))
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewTypedTool derives the parameter schema from the fields of Args (see
// util.SchemaFor) and hands fn the validated arguments decoded into Args.
//
//	type transferArgs struct {
//	  To     string `json:"to" description:"Destination 0x address."`
//	  Amount string `json:"amount" description:"Amount in ether."`
//	}
//	tool.NewTypedTool("transfer_funds", "...", func(tc *core.ToolContext, a transferArgs) (any, error) { ... })
func NewTypedTool[Args any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args Args) (any, error),
) *FunctionTool {
	var zero Args
	return NewFunctionTool(name, description, util.SchemaFor(zero), func(toolCtx *core.ToolContext, raw map[string]any) (any, error) {
		var args Args
		if err := util.DecodeArgs(raw, &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("parameter decoding failed: %v", err),
				Code:    CodeValidation,
				Details: err,
			}
		}
		return fn(toolCtx, args)
	})
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the declared schema then invokes the function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "call_id", toolCtx.CallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
