package core

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is the durable snapshot of one conversation thread: the ordered
// message history plus the artifact produced by the most recent tool call of
// the last committed turn. A checkpoint is always replaced wholesale.
type Checkpoint struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Messages  []Message `json:"messages"`
	Artifact  Artifact  `json:"artifact"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCheckpoint builds a checkpoint with a time-ordered id. The messages and
// artifact are copied as plain JSON values (see Artifact.Plain) so the
// caller's working set cannot leak into storage and every store reads back
// the same values.
func NewCheckpoint(threadID string, msgs []Message, artifact Artifact) Checkpoint {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if artifact == nil {
		artifact = EmptyArtifact()
	}
	return Checkpoint{
		ID:        id.String(),
		ThreadID:  threadID,
		Messages:  msgs,
		Artifact:  artifact,
		CreatedAt: time.Now().UTC(),
	}.Plain()
}

// Clone returns a deep copy of the checkpoint.
func (c Checkpoint) Clone() Checkpoint {
	out := c
	out.Messages = CloneMessages(c.Messages)
	out.Artifact = c.Artifact.Clone()
	return out
}

// Write is a single channel update produced by one orchestration task.
type Write struct {
	Channel string `json:"channel"`
	Value   any    `json:"value"`
}

// WriteRecord is an audit entry grouping the writes of one task.
type WriteRecord struct {
	TaskID    string    `json:"task_id"`
	Writes    []Write   `json:"writes"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadCheckpoint pairs a thread id with its current checkpoint.
type ThreadCheckpoint struct {
	ThreadID   string
	Checkpoint Checkpoint
}

// CheckpointStore persists the latest checkpoint per thread plus an append-only
// audit log of task writes.
//
// Contract:
//   - Get returns (nil, nil) for an unknown thread; absence is not an error
//   - Put overwrites unconditionally (last writer wins); callers serialize
//     turns per thread
//   - AppendWrite is never read back by the orchestrator
//   - List yields a snapshot; every call produces a fresh, independent sequence
//   - Clear discards all threads and write logs
//
// Implementations backed by a fallible medium report failures as *StoreError
// (matching ErrStoreUnavailable) so a lost Put is never silent.
type CheckpointStore interface {
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	Put(ctx context.Context, threadID string, cp Checkpoint) error
	AppendWrite(ctx context.Context, threadID, taskID string, writes []Write) error
	List(ctx context.Context) iter.Seq2[ThreadCheckpoint, error]
	Clear(ctx context.Context) error
}

// WriteLog exposes the audit records of a thread for external inspection.
type WriteLog interface {
	Writes(ctx context.Context, threadID string) ([]WriteRecord, error)
}
