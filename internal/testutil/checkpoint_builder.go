package testutil

import (
	"github.com/hupe1980/secretary/core"
)

// CheckpointBuilder helps construct checkpoints with fluent chaining for tests.
// Example:
//
//	cp := NewCheckpointBuilder("thread-1").Exchange("hi", "hello").Artifact("count", 3).Build()
type CheckpointBuilder struct {
	threadID string
	messages []core.Message
	artifact core.Artifact
}

// NewCheckpointBuilder creates a new builder for the given thread id.
func NewCheckpointBuilder(threadID string) *CheckpointBuilder {
	return &CheckpointBuilder{threadID: threadID, artifact: core.EmptyArtifact()}
}

// Message appends messages to the history (chainable).
func (b *CheckpointBuilder) Message(msgs ...core.Message) *CheckpointBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Exchange appends a user message followed by an assistant answer (chainable).
func (b *CheckpointBuilder) Exchange(user, assistant string) *CheckpointBuilder {
	b.messages = append(b.messages, core.NewUserMessage(user), core.NewAssistantMessage(assistant))
	return b
}

// Artifact sets or overwrites an artifact key (chainable).
func (b *CheckpointBuilder) Artifact(key string, val any) *CheckpointBuilder {
	b.artifact[key] = val
	return b
}

// Build returns a checkpoint with a fresh id.
func (b *CheckpointBuilder) Build() core.Checkpoint {
	return core.NewCheckpoint(b.threadID, b.messages, b.artifact)
}
