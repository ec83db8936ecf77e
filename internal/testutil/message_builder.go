package testutil

import (
	"time"

	"github.com/hupe1980/secretary/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Tool("book-flight", "Error: no seats").Status("error").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder creates a builder for an empty user message.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: core.NewMessage(core.RoleUser, "")}
}

// User sets role user and the content (chainable).
func (b *MessageBuilder) User(text string) *MessageBuilder {
	b.msg.Role = core.RoleUser
	b.msg.Content = text
	return b
}

// Assistant sets role assistant and the content (chainable).
func (b *MessageBuilder) Assistant(text string) *MessageBuilder {
	b.msg.Role = core.RoleAssistant
	b.msg.Content = text
	return b
}

// Tool sets role tool, the tool name and the content (chainable).
func (b *MessageBuilder) Tool(name, text string) *MessageBuilder {
	b.msg.Role = core.RoleTool
	b.msg.ToolName = name
	b.msg.Content = text
	return b
}

// Call appends a tool call request (chainable).
func (b *MessageBuilder) Call(id, name string, args map[string]any) *MessageBuilder {
	b.msg.ToolCalls = append(b.msg.ToolCalls, core.ToolCall{ID: id, Name: name, Arguments: args})
	return b
}

// CallID sets the tool call id answered by a tool message (chainable).
func (b *MessageBuilder) CallID(id string) *MessageBuilder { b.msg.ToolCallID = id; return b }

// Error marks the message as error-flagged (chainable).
func (b *MessageBuilder) Error() *MessageBuilder { b.msg.IsError = true; return b }

// Status sets the status field (chainable).
func (b *MessageBuilder) Status(s string) *MessageBuilder { b.msg.Status = s; return b }

// Artifact attaches an artifact (chainable).
func (b *MessageBuilder) Artifact(a core.Artifact) *MessageBuilder { b.msg.Artifact = a; return b }

// ID overrides the generated id (chainable). Use where determinism matters.
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.msg.ID = id; return b }

// At overrides the creation time (chainable).
func (b *MessageBuilder) At(t time.Time) *MessageBuilder { b.msg.CreatedAt = t; return b }

// Build returns a copy of the constructed message.
func (b *MessageBuilder) Build() core.Message { return b.msg.Clone() }
