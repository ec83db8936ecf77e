package tool

import (
	"context"

	"github.com/hupe1980/secretary/internal/util"
)

// FunctionFunc is the signature of a Go function exposed as a tool.
type FunctionFunc func(ctx context.Context, args map[string]any) (Output, error)

// FunctionTool exposes a plain Go function as a Tool.
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use. Argument validation happens in the Invoker, so fn only sees
// arguments that satisfy the declared schema.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          FunctionFunc
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	listEvents := NewFunctionTool(
//	  "list-events",
//	  "List calendar events for a day",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "day": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"day"},
//	  },
//	  func(ctx context.Context, args map[string]any) (Output, error) {
//	    return TextOutput("3 events found").WithArtifact(core.Artifact{"count": 3}), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn FunctionFunc) *FunctionTool {
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

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (json, description and enum tags).
func NewFunctionToolFromStruct(name, description string, structType any, fn FunctionFunc) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the tool description.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (Output, error) {
	return t.fn(ctx, args)
}
