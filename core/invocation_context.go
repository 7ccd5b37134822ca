package core

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/analystmesh/logging"
)

// InvocationContext carries the execution scope of a single agent step:
//   - the session context (cancelled on timeout or Engine.Cancel)
//   - identifiers (SessionID, InvocationID, Step, AgentName)
//   - the read-only State snapshot the agent works on
//   - the per-session model call limiter and the data-file store
//   - the tool calls recorded during the step
//   - a logger bound to session_id, agent and step
//
// Agents never mutate State; they return an AgentOutput instead.
type InvocationContext struct {
	Context      context.Context
	SessionID    string
	InvocationID string
	Step         int
	AgentName    string
	State        State
	Limiter      *ModelLimiter
	DataFiles    DataFileStore

	allowedTools []string
	mu           sync.Mutex
	toolCalls    []ToolCallRecord

	*stepLogger
}

// InvocationOptions carries the optional collaborators of an InvocationContext.
type InvocationOptions struct {
	Limiter      *ModelLimiter
	DataFiles    DataFileStore
	AllowedTools []string
	Logger       logging.Logger
}

// NewInvocationContext constructs the context for one agent step.
func NewInvocationContext(
	ctx context.Context,
	sessionID, invocationID string,
	step int,
	agentName string,
	state State,
	optFns ...func(o *InvocationOptions),
) *InvocationContext {
	opts := InvocationOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InvocationContext{
		Context:      ctx,
		SessionID:    sessionID,
		InvocationID: invocationID,
		Step:         step,
		AgentName:    agentName,
		State:        state,
		Limiter:      opts.Limiter,
		DataFiles:    opts.DataFiles,
		allowedTools: slices.Clone(opts.AllowedTools),
		stepLogger:   newStepLogger(opts.Logger, sessionID, agentName, step),
	}
}

// Done mirrors context.Context's Done.
func (ic *InvocationContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *InvocationContext) Err() error { return ic.Context.Err() }

// AllowsTool reports whether the step may call the named tool.
func (ic *InvocationContext) AllowsTool(name string) bool {
	return slices.Contains(ic.allowedTools, name)
}

// NewToolContext derives a tool scope for one call.
func (ic *InvocationContext) NewToolContext(toolName, callID string) *ToolContext {
	return &ToolContext{
		invocationCtx:  ic,
		toolName:       toolName,
		functionCallID: callID,
		stepLogger:     ic.stepLogger.forTool(toolName, callID),
	}
}

// RecordToolCall appends a tool call record for the step.
func (ic *InvocationContext) RecordToolCall(rec ToolCallRecord) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.toolCalls = append(ic.toolCalls, rec)
}

// ToolCalls returns a copy of the tool calls recorded so far.
func (ic *InvocationContext) ToolCalls() []ToolCallRecord {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return slices.Clone(ic.toolCalls)
}

// LoadDataFile reads an uploaded data file by id.
func (ic *InvocationContext) LoadDataFile(id string) ([]byte, error) {
	if ic.DataFiles == nil {
		return nil, fmt.Errorf("data file store not configured")
	}
	return ic.DataFiles.Get(ic.Context, id)
}
