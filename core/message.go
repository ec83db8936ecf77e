package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

const (
	// RoleUser marks input typed by the human side of the conversation.
	RoleUser Role = "user"
	// RoleAssistant marks model output and post-tool summaries.
	RoleAssistant Role = "assistant"
	// RoleTool marks normalized tool results.
	RoleTool Role = "tool"
	// RoleSystem marks fixed instructions. System messages are never persisted.
	RoleSystem Role = "system"
)

// Tool message status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Artifact is opaque structured data attached to a tool result or checkpoint.
// The orchestrator passes it through without interpretation.
type Artifact map[string]any

// EmptyArtifact returns a non-nil empty artifact.
func EmptyArtifact() Artifact { return Artifact{} }

// Clone returns a deep copy of the artifact. Nested maps and slices are copied,
// scalar leaves are shared.
func (a Artifact) Clone() Artifact {
	if a == nil {
		return nil
	}
	out := make(Artifact, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Artifact:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// ToolCall is a model request to invoke a named tool with structured arguments.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one turn unit of a conversation. After construction it must be
// treated as immutable; ordering inside a thread is significant and append-only.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls"`
	IsError    bool       `json:"is_error,omitempty"`
	Status     string     `json:"status,omitempty"`
	Artifact   Artifact   `json:"artifact"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewID returns a random identifier for messages, turns and tasks.
func NewID() string { return uuid.NewString() }

// NewMessage creates a message with a fresh id and UTC timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(content string) Message { return NewMessage(RoleUser, content) }

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// HasToolCalls reports whether the message requests at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Clone returns a deep copy safe for independent mutation.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c.ToolCalls[i] = ToolCall{ID: tc.ID, Name: tc.Name}
			if tc.Arguments != nil {
				c.ToolCalls[i].Arguments = map[string]any(Artifact(tc.Arguments).Clone())
			}
		}
	}
	c.Artifact = m.Artifact.Clone()
	return c
}

// CloneMessages deep-copies a message slice. A nil input yields an empty slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// LastMessage returns the final message of msgs matching role, if any.
func LastMessage(msgs []Message, role Role) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i], true
		}
	}
	return Message{}, false
}
