package model

import (
	"context"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/tool"
)

// ToolDefinition declaratively exposes a callable tool to the model.
type ToolDefinition = tool.Definition

// Request captures the normalized model input produced by the engine.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Kind tags a Response as a plain answer or a tool call request.
type Kind int

const (
	// KindAnswer is a final assistant answer.
	KindAnswer Kind = iota
	// KindToolCalls asks the engine to run one or more tools.
	KindToolCalls
)

func (k Kind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindToolCalls:
		return "tool_calls"
	default:
		return "unknown"
	}
}

// Response is the tagged union returned by a Model. Consumers switch on Kind;
// Message always carries the assistant message to append to the history.
type Response struct {
	Kind         Kind         `json:"kind"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// NewAnswer builds a KindAnswer response.
func NewAnswer(text string) Response {
	return Response{
		Kind:         KindAnswer,
		Message:      core.NewAssistantMessage(text),
		FinishReason: "stop",
	}
}

// NewToolCalls builds a KindToolCalls response. Calls without an id get one.
func NewToolCalls(text string, calls ...core.ToolCall) Response {
	msg := core.NewAssistantMessage(text)
	msg.ToolCalls = make([]core.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + core.NewID()
		}
		msg.ToolCalls[i] = c
	}
	return Response{
		Kind:         KindToolCalls,
		Message:      msg,
		FinishReason: "tool_calls",
	}
}

// FromMessage derives the tag from the presence of tool calls on msg.
func FromMessage(msg core.Message, finishReason string) Response {
	kind := KindAnswer
	if msg.HasToolCalls() {
		kind = KindToolCalls
	}
	msg.Role = core.RoleAssistant
	return Response{Kind: kind, Message: msg, FinishReason: finishReason}
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the capability the engine drives: given instructions and history,
// produce the next assistant message.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}
