package core

import (
	"context"
	"fmt"
	"time"
)

// ToolContext is the constrained surface a tool sees for one call. It checks
// that the calling agent holds the tool and records the call outcome on the
// owning InvocationContext.
type ToolContext struct {
	invocationCtx  *InvocationContext
	toolName       string
	functionCallID string

	*stepLogger
}

// Context returns the session context; tools must pass it to blocking calls.
func (tc *ToolContext) Context() context.Context { return tc.invocationCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.invocationCtx.SessionID }

// AgentName returns the agent that issued the call.
func (tc *ToolContext) AgentName() string { return tc.invocationCtx.AgentName }

// ToolName returns the tool being called.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// FunctionCallID returns the call identifier.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// State returns the snapshot the calling agent works on.
func (tc *ToolContext) State() State { return tc.invocationCtx.State }

// LoadDataFile reads an uploaded data file by id.
func (tc *ToolContext) LoadDataFile(id string) ([]byte, error) {
	return tc.invocationCtx.LoadDataFile(id)
}

// Authorize fails with a ToolExecutionError when the calling agent does not
// hold the tool.
func (tc *ToolContext) Authorize() error {
	if !tc.invocationCtx.AllowsTool(tc.toolName) {
		return &ToolExecutionError{
			Tool:    tc.toolName,
			Code:    ToolErrUnauthorized,
			Message: fmt.Sprintf("agent %s is not authorized to call %s", tc.AgentName(), tc.toolName),
		}
	}
	return nil
}

// Record stores the outcome of the call on the invocation.
func (tc *ToolContext) Record(args map[string]any, dur time.Duration, rows int, err error) {
	rec := ToolCallRecord{
		ID:       tc.functionCallID,
		Tool:     tc.toolName,
		Args:     args,
		Duration: dur,
		Rows:     rows,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	tc.invocationCtx.RecordToolCall(rec)
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.invocationCtx == nil || tc.invocationCtx.SessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
