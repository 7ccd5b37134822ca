// Package tool implements the data-access tools agents use to reach external
// data: the database query tool and the file read tool. Arguments are schema
// validated, calls are authorized against the invoking agent, and every call
// is recorded on the step's interaction.
package tool

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/analystmesh/core"
	"github.com/hupe1980/analystmesh/internal/util"
)

// Tool is a data-access capability. Call receives already validated
// arguments and must pass toolCtx.Context() to every blocking operation so
// that session timeouts cancel in-flight work.
type Tool interface {
	// Name returns the unique identifier (snake_case).
	Name() string

	// Description is shown to models deciding how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any

	Call(toolCtx *core.ToolContext, args map[string]any) (core.Table, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Run executes t for the step described by ic. It authorizes the call,
// normalizes failures into *core.ToolExecutionError and records the outcome
// on ic.
func Run(ic *core.InvocationContext, t Tool, args map[string]any) (core.Table, error) {
	tc := ic.NewToolContext(t.Name(), uuid.NewString())
	logger := tc.Logger()

	if err := tc.Authorize(); err != nil {
		logger.Warn("tool.call.unauthorized")
		tc.Record(args, 0, 0, err)
		return core.Table{}, err
	}

	start := time.Now()
	tbl, err := t.Call(tc, args)
	dur := time.Since(start)
	if err != nil {
		err = normalizeError(tc.Context(), t.Name(), err)
		logger.Error("tool.call.error", "error", err.Error())
		tc.Record(args, dur, 0, err)
		return core.Table{}, err
	}

	logger.Info("tool.call.success", "rows", tbl.Len(), "duration_ms", dur.Milliseconds())
	tc.Record(args, dur, tbl.Len(), nil)
	return tbl, nil
}

func normalizeError(ctx context.Context, name string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr == nil {
			ctxErr = err
		}
		return &core.ToolExecutionError{Tool: name, Code: core.ToolErrCancelled, Message: "call cancelled", Err: ctxErr}
	}
	var te *core.ToolExecutionError
	if errors.As(err, &te) {
		return te
	}
	return &core.ToolExecutionError{Tool: name, Code: core.ToolErrExecution, Message: err.Error(), Err: err}
}
