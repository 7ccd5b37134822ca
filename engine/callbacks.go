package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/analystmesh/core"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks are executed synchronously on the session goroutine. A callback
// returning an error fails the session, except for CallbackOnError and
// CallbackOnSessionEnd whose errors are only logged.
type CallbackType string

const (
	// CallbackBeforeAgent is triggered before an agent is invoked.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent is triggered after an agent returned its output,
	// before the update is merged.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackOnStateChange is triggered with the authorized delta before it
	// is merged. Use for validation or auditing.
	CallbackOnStateChange CallbackType = "on_state_change"

	// CallbackOnError is triggered when a session fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnSessionEnd is triggered with the final record.
	CallbackOnSessionEnd CallbackType = "on_session_end"
)

// CallbackContext carries the information available at a lifecycle point.
// Fields that do not apply to the callback type are zero.
type CallbackContext struct {
	SessionID string
	Step      int
	AgentName string

	// State is the snapshot the agent was invoked with.
	State core.State

	Output *core.AgentOutput
	Delta  core.StateDelta
	Err    error
	Record *core.SessionRecord

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback is an execution lifecycle hook.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackAfterAgent,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("%s wrote %v", cc.AgentName, maps.Keys(cc.Output.Delta))
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks by type. It is safe for
// concurrent use; sessions execute callbacks while others may register.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback. Callbacks of the same type run in
// registration order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks registered for callbackType and stops
// at the first error. A nil manager runs nothing.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}
	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the session, step and agent of the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		message := fmt.Sprintf("[%s] session=%s step=%d agent=%s",
			c.callbackType, callbackCtx.SessionID, callbackCtx.Step, callbackCtx.AgentName)
		if callbackCtx.Err != nil {
			message += " error=" + callbackCtx.Err.Error()
		}
		c.logger(message)
	}
	return nil
}

// StateValidationCallback validates each delta before it is merged.
//
// Example:
//
//	noDDL := NewStateValidationCallback(func(delta core.StateDelta) error {
//	    if sql, ok := delta[core.FieldSQL].(string); ok && strings.Contains(strings.ToUpper(sql), "DROP") {
//	        return errors.New("destructive sql rejected")
//	    }
//	    return nil
//	})
type StateValidationCallback struct {
	validator func(delta core.StateDelta) error
}

// NewStateValidationCallback creates a new state validation callback.
func NewStateValidationCallback(validator func(delta core.StateDelta) error) *StateValidationCallback {
	return &StateValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackOnStateChange).
func (c *StateValidationCallback) Type() CallbackType {
	return CallbackOnStateChange
}

// Execute validates the delta.
func (c *StateValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Delta != nil {
		return c.validator(callbackCtx.Delta)
	}
	return nil
}
