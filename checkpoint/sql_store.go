package checkpoint

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/secretary/core"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// state is the compressed payload of one checkpoint row.
type state struct {
	Messages []core.Message `json:"messages"`
	Artifact core.Artifact  `json:"artifact"`
}

// SQLStore is a durable CheckpointStore backed by SQLite. One row holds the
// latest checkpoint of a thread; audit writes go to an append-only table.
// Every failure of the database is returned as *core.StoreError.
type SQLStore struct {
	db *sql.DB
}

var (
	_ core.CheckpointStore = (*SQLStore)(nil)
	_ core.WriteLog        = (*SQLStore)(nil)
)

// OpenSQLite opens (or creates) a SQLite database at dsn using the pure Go
// driver and returns a migrated store. Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.NewStoreError("open", "", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s, err := NewSQLStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore runs the embedded migrations against db and returns the store.
func NewSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, core.NewStoreError("migrate", "", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return nil, core.NewStoreError("migrate", "", err)
	}

	return &SQLStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get returns the thread's checkpoint or nil when the thread is unknown.
func (s *SQLStore) Get(ctx context.Context, threadID string) (*core.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, checkpoint_id, created_at, state_gz
		FROM checkpoints WHERE thread_id = ?
	`, threadID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewStoreError("get", threadID, err)
	}
	return cp, nil
}

// Put replaces the thread's checkpoint.
func (s *SQLStore) Put(ctx context.Context, threadID string, cp core.Checkpoint) error {
	artifact := cp.Artifact
	if artifact == nil {
		artifact = core.EmptyArtifact()
	}

	compressed, err := compress(state{Messages: cp.Messages, Artifact: artifact})
	if err != nil {
		return core.NewStoreError("put", threadID, err)
	}

	createdAt := cp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, checkpoint_id, created_at, message_count, byte_size, state_gz)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			checkpoint_id = excluded.checkpoint_id,
			created_at    = excluded.created_at,
			message_count = excluded.message_count,
			byte_size     = excluded.byte_size,
			state_gz      = excluded.state_gz
	`, threadID, cp.ID, createdAt.UTC().Format(time.RFC3339Nano), len(cp.Messages), len(compressed), compressed)
	return core.NewStoreError("put", threadID, err)
}

// AppendWrite appends an audit record for the thread.
func (s *SQLStore) AppendWrite(ctx context.Context, threadID, taskID string, writes []core.Write) error {
	if writes == nil {
		writes = []core.Write{}
	}
	payload, err := json.Marshal(writes)
	if err != nil {
		return core.NewStoreError("append_write", threadID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint_writes (thread_id, task_id, created_at, writes)
		VALUES (?, ?, ?, ?)
	`, threadID, taskID, time.Now().UTC().Format(time.RFC3339Nano), string(payload))
	return core.NewStoreError("append_write", threadID, err)
}

// Writes returns the thread's audit records in append order.
func (s *SQLStore) Writes(ctx context.Context, threadID string) ([]core.WriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, created_at, writes
		FROM checkpoint_writes
		WHERE thread_id = ?
		ORDER BY id ASC
	`, threadID)
	if err != nil {
		return nil, core.NewStoreError("writes", threadID, err)
	}
	defer rows.Close()

	var records []core.WriteRecord
	for rows.Next() {
		var (
			rec        core.WriteRecord
			createdStr string
			payload    string
		)
		if err := rows.Scan(&rec.TaskID, &createdStr, &payload); err != nil {
			return nil, core.NewStoreError("writes", threadID, err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		if err := json.Unmarshal([]byte(payload), &rec.Writes); err != nil {
			return nil, core.NewStoreError("writes", threadID, fmt.Errorf("unmarshal writes: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("writes", threadID, err)
	}
	return records, nil
}

// List yields every thread ordered by id. All rows are read before the first
// element is yielded, so the sequence is a snapshot and holds no open cursor
// while the consumer runs.
func (s *SQLStore) List(ctx context.Context) iter.Seq2[core.ThreadCheckpoint, error] {
	return func(yield func(core.ThreadCheckpoint, error) bool) {
		snapshot, err := s.snapshot(ctx)
		if err != nil {
			yield(core.ThreadCheckpoint{}, core.NewStoreError("list", "", err))
			return
		}
		for _, cp := range snapshot {
			if !yield(core.ThreadCheckpoint{ThreadID: cp.ThreadID, Checkpoint: *cp}, nil) {
				return
			}
		}
	}
}

func (s *SQLStore) snapshot(ctx context.Context) ([]*core.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, checkpoint_id, created_at, state_gz
		FROM checkpoints
		ORDER BY thread_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Clear discards all threads and write logs.
func (s *SQLStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStoreError("clear", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints`); err != nil {
		return core.NewStoreError("clear", "", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_writes`); err != nil {
		return core.NewStoreError("clear", "", err)
	}
	return core.NewStoreError("clear", "", tx.Commit())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*core.Checkpoint, error) {
	var (
		cp         core.Checkpoint
		createdStr string
		stateGz    []byte
	)
	if err := row.Scan(&cp.ThreadID, &cp.ID, &createdStr, &stateGz); err != nil {
		return nil, err
	}
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	st, err := decompress(stateGz)
	if err != nil {
		return nil, err
	}
	cp.Messages = st.Messages
	if cp.Messages == nil {
		cp.Messages = []core.Message{}
	}
	cp.Artifact = st.Artifact
	if cp.Artifact == nil {
		cp.Artifact = core.EmptyArtifact()
	}
	return &cp, nil
}

func compress(st state) ([]byte, error) {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(stateJSON); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (*state, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	var st state
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	core.ResolveNumbers(st.Artifact)
	for _, m := range st.Messages {
		core.ResolveNumbers(m.Artifact)
		for _, tc := range m.ToolCalls {
			core.ResolveNumbers(tc.Arguments)
		}
	}
	return &st, nil
}
