package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/model"
	"github.com/hupe1980/secretary/tool"
)

// CallbackType defines the lifecycle points of a turn where callbacks run.
//
// Callbacks run synchronously on the turn's goroutine. A returned error
// terminates the turn, except for CallbackBeforeTool whose error is turned
// into an error tool result, and CallbackOnError whose error is only logged.
type CallbackType string

const (
	// CallbackBeforeModel runs before every model call.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after a successful model call.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool runs before each tool call. Returning an error vetoes
	// the call; the tool is not invoked and an error result takes its place.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool runs after each tool call with the normalized result.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnTransition runs on every state transition.
	CallbackOnTransition CallbackType = "on_transition"

	// CallbackOnRollback runs when an attempt enters ROLLBACK.
	CallbackOnRollback CallbackType = "on_rollback"

	// CallbackOnCommit runs after the checkpoint of a turn was stored.
	CallbackOnCommit CallbackType = "on_commit"

	// CallbackOnError runs when a turn fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the turn data visible to a callback. Fields that do
// not apply to a callback type are left zero.
type CallbackContext struct {
	ThreadID     string
	TurnID       string
	CallbackType CallbackType

	// State is the node being executed. For on_transition, From and To
	// describe the edge.
	State State
	From  State
	To    State

	// Step is the number of model calls made so far in this turn.
	Step int

	Request    *model.Request
	Response   *model.Response
	ToolCall   *core.ToolCall
	Result     *tool.Result
	Checkpoint *core.Checkpoint
	Err        error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for turn lifecycle hooks.
//
// Implementations should be fast, since they block the turn, and must not
// retain the pointers found in CallbackContext beyond Execute.
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
//	    CallbackBeforeTool,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        if cc.ToolCall.Name == "delete-event" {
//	            return errors.New("deleting events requires confirmation")
//	        }
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

// CallbackManager stores callbacks by type and runs them in registration
// order. The first error stops the chain. It is safe for concurrent use.
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

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	if len(callbacks) == 0 {
		return nil
	}

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards a one-line description of each event to a
// logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackOnTransition, func(message string) {
//	    log.Printf("[ENGINE] %s", message)
//	})
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

// Execute logs the event. A nil logger function makes it a no-op.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	var message string
	switch c.callbackType {
	case CallbackOnTransition:
		message = fmt.Sprintf("[%s] thread=%s turn=%s %s -> %s", c.callbackType, cc.ThreadID, cc.TurnID, cc.From, cc.To)
	case CallbackBeforeTool, CallbackAfterTool:
		name := ""
		if cc.ToolCall != nil {
			name = cc.ToolCall.Name
		}
		message = fmt.Sprintf("[%s] thread=%s turn=%s tool=%s", c.callbackType, cc.ThreadID, cc.TurnID, name)
	case CallbackOnError:
		message = fmt.Sprintf("[%s] thread=%s turn=%s err=%v", c.callbackType, cc.ThreadID, cc.TurnID, cc.Err)
	default:
		message = fmt.Sprintf("[%s] thread=%s turn=%s state=%s step=%d", c.callbackType, cc.ThreadID, cc.TurnID, cc.State, cc.Step)
	}
	c.logger(message)
	return nil
}

// ArtifactValidationCallback checks the artifact of each tool result after
// the call. A validator error terminates the turn.
//
// Example:
//
//	callback := NewArtifactValidationCallback(func(a core.Artifact) error {
//	    if _, ok := a["count"]; !ok {
//	        return errors.New("count missing")
//	    }
//	    return nil
//	})
type ArtifactValidationCallback struct {
	validator func(artifact core.Artifact) error
}

// NewArtifactValidationCallback creates a new artifact validation callback.
func NewArtifactValidationCallback(validator func(artifact core.Artifact) error) *ArtifactValidationCallback {
	return &ArtifactValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackAfterTool).
func (c *ArtifactValidationCallback) Type() CallbackType {
	return CallbackAfterTool
}

// Execute validates the artifact of the tool result, if any.
func (c *ArtifactValidationCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.validator != nil && cc.Result != nil && !cc.Result.IsError() {
		return c.validator(cc.Result.Artifact)
	}
	return nil
}
