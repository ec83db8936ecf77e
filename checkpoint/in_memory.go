package checkpoint

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/secretary/core"
)

// InMemoryStore is a volatile CheckpointStore storing checkpoints in a process
// local map. It is safe for concurrent access. Every checkpoint is cloned on
// Put and Get so callers can never mutate stored history.
type InMemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]core.Checkpoint
	writes      map[string][]core.WriteRecord
}

var (
	_ core.CheckpointStore = (*InMemoryStore)(nil)
	_ core.WriteLog        = (*InMemoryStore)(nil)
)

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		checkpoints: make(map[string]core.Checkpoint),
		writes:      make(map[string][]core.WriteRecord),
	}
}

// Get returns a clone of the thread's checkpoint or nil when the thread is unknown.
func (s *InMemoryStore) Get(_ context.Context, threadID string) (*core.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, nil
	}
	out := cp.Clone()
	return &out, nil
}

// Put replaces the thread's checkpoint with a plain JSON copy of cp, so reads
// return the same values a SQLStore would.
func (s *InMemoryStore) Put(_ context.Context, threadID string, cp core.Checkpoint) error {
	stored := cp.Plain()
	stored.ThreadID = threadID
	if stored.Artifact == nil {
		stored.Artifact = core.EmptyArtifact()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[threadID] = stored
	return nil
}

// AppendWrite appends an audit record to the thread's write log.
func (s *InMemoryStore) AppendWrite(_ context.Context, threadID, taskID string, writes []core.Write) error {
	rec := core.WriteRecord{
		TaskID:    taskID,
		Writes:    append([]core.Write(nil), writes...),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[threadID] = append(s.writes[threadID], rec)
	return nil
}

// Writes returns a copy of the thread's audit records in append order.
func (s *InMemoryStore) Writes(_ context.Context, threadID string) ([]core.WriteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.WriteRecord(nil), s.writes[threadID]...), nil
}

// List yields every thread ordered by id. The map is snapshotted when iteration
// starts, so concurrent Puts are not observed by a running sequence.
func (s *InMemoryStore) List(_ context.Context) iter.Seq2[core.ThreadCheckpoint, error] {
	return func(yield func(core.ThreadCheckpoint, error) bool) {
		s.mu.RLock()
		snapshot := make([]core.ThreadCheckpoint, 0, len(s.checkpoints))
		for id, cp := range s.checkpoints {
			snapshot = append(snapshot, core.ThreadCheckpoint{ThreadID: id, Checkpoint: cp.Clone()})
		}
		s.mu.RUnlock()

		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ThreadID < snapshot[j].ThreadID })

		for _, tc := range snapshot {
			if !yield(tc, nil) {
				return
			}
		}
	}
}

// Clear discards all threads and write logs.
func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = make(map[string]core.Checkpoint)
	s.writes = make(map[string][]core.WriteRecord)
	return nil
}
