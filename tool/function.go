package tool

import (
	"fmt"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/util"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// Error semantics:
//
//	*core.ToolExecutionError (returned directly) -> forwarded unchanged
//	validation failure                           -> Code VALIDATION_ERROR
//	other error                                  -> Code EXECUTION_ERROR
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (core.Table, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (core.Table, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (core.Table, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the declared schema then invokes the function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (core.Table, error) {
	toolCtx.LogDebug("tool.call.start")

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return core.Table{}, validationError(t.name, err)
	}

	tbl, err := t.fn(toolCtx, args)
	if err != nil {
		if te, ok := err.(*core.ToolExecutionError); ok {
			return core.Table{}, te
		}
		return core.Table{}, &core.ToolExecutionError{Tool: t.name, Code: core.ToolErrExecution, Message: err.Error(), Err: err}
	}
	return tbl, nil
}

func validationError(tool string, err error) *core.ToolExecutionError {
	return &core.ToolExecutionError{
		Tool:    tool,
		Code:    core.ToolErrValidation,
		Message: fmt.Sprintf("parameter validation failed: %v", err),
		Err:     err,
	}
}
