package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionTimeout is returned when a session exceeds its deadline.
	ErrSessionTimeout = errors.New("session timeout")
	// ErrUnknownAgent is returned when routing names an agent that is not registered.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrModelCallLimit is returned when a session exhausts its model call budget.
	ErrModelCallLimit = errors.New("model call limit exceeded")
)

// SchemaViolation reports a state update that breaks the field contract:
// an unknown field, a value of the wrong shape or a write outside the
// agent's authorized fields.
type SchemaViolation struct {
	Agent  string
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	if e.Agent != "" {
		return fmt.Sprintf("schema violation: agent %s field %q: %s", e.Agent, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema violation: field %q: %s", e.Field, e.Reason)
}

// AgentOutputError reports that an agent could not produce valid structured
// output, including after the fallback attempt.
type AgentOutputError struct {
	Agent    string
	Attempts int
	Err      error
}

func (e *AgentOutputError) Error() string {
	return fmt.Sprintf("agent %s: no valid output after %d attempt(s): %v", e.Agent, e.Attempts, e.Err)
}

func (e *AgentOutputError) Unwrap() error { return e.Err }

// Tool error codes.
const (
	ToolErrValidation   = "VALIDATION_ERROR"
	ToolErrExecution    = "EXECUTION_ERROR"
	ToolErrUnauthorized = "UNAUTHORIZED"
	ToolErrCancelled    = "CANCELLED"
)

// ToolExecutionError reports a failed data access through a tool.
type ToolExecutionError struct {
	Tool    string
	Code    string
	Message string
	Err     error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s [%s]: %s", e.Tool, e.Code, e.Message)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// IncompleteSessionError reports a terminal step that left a required
// artifact unset.
type IncompleteSessionError struct {
	SessionID string
	Agent     string
	Missing   string
}

func (e *IncompleteSessionError) Error() string {
	return fmt.Sprintf("session %s incomplete: terminal agent %s did not set %s", e.SessionID, e.Agent, e.Missing)
}
