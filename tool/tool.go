// Package tool implements the tool capability contract and the invocation
// adapter that turns raw tool output into uniform, error-flagged results.
//
// A Tool exposes a name, a description, a JSON schema for its arguments and a
// Call operation. The Invoker validates arguments against that schema, runs the
// tool with panic containment and normalizes whatever comes back into a
// Result. Invoker.Invoke never returns an error: every failure is represented
// as a Result whose IsError reports true.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/internal/util"
)

// Tool is an external capability the model may request.
//
// Implementations should:
//   - Provide descriptive names (kebab-case or snake_case)
//   - Return a JSON schema from Parameters describing accepted arguments
//   - Respect ctx cancellation for long running calls
//   - Be safe for concurrent use by multiple threads
type Tool interface {
	// Name returns the unique identifier used in model tool calls.
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with already validated arguments. The caller's
	// runtime context is available through core.RuntimeContextFrom(ctx).
	Call(ctx context.Context, args map[string]any) (Output, error)
}

// ContentItem is one element of a tool's raw content list.
type ContentItem struct {
	Type string `json:"type"` // "text", "json", "image", ...
	Text string `json:"text,omitempty"`
}

// Output is the raw result of a tool call before normalization.
//
// IsError is the tool's explicit error annotation; Status is an optional
// status field ("success" / "error"). Both feed the Result error signals.
type Output struct {
	Content  []ContentItem `json:"content,omitempty"`
	Artifact core.Artifact `json:"artifact,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
	Status   string        `json:"status,omitempty"`
}

// TextOutput builds an Output with a single text item.
func TextOutput(text string) Output {
	return Output{Content: []ContentItem{{Type: "text", Text: text}}}
}

// WithArtifact returns a copy of o carrying artifact.
func (o Output) WithArtifact(artifact core.Artifact) Output {
	o.Artifact = artifact
	return o
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
	CodeNotFound   = "TOOL_NOT_FOUND"
	CodeRejected   = "REJECTED"
)

// ToolError represents errors that occur during tool resolution or execution.
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

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Definition is the provider-neutral description of a tool exposed to models.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// DefinitionOf returns the model-facing definition of t.
func DefinitionOf(t Tool) Definition {
	return Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}
