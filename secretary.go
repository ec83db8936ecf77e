// Package secretary provides the conversation facade of a virtual secretary:
// it validates user queries, builds the system prompt, keeps the current
// thread id and shapes engine results into replies.
//
// Most applications interact with this package by:
//  1. Creating a model (model/openai, model/anthropic or model.MockModel)
//  2. Providing the tools the secretary may use
//  3. Calling New and then Chat for every user query
//
// Orchestration is delegated to engine.Engine. Defaults are safe for local
// development: checkpoints live in memory and logs are discarded.
package secretary

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/engine"
	"github.com/hupe1980/secretary/logging"
	"github.com/hupe1980/secretary/model"
	"github.com/hupe1980/secretary/tool"
)

// Query bounds in runes. A query must be longer than MinQueryLength and at
// most MaxQueryLength.
const (
	DefaultMinQueryLength = 2
	DefaultMaxQueryLength = 256
)

// ContentItem is one element of a reply's content list.
type ContentItem = tool.ContentItem

// Reply is the outcome of one Chat call.
type Reply struct {
	Content  []ContentItem `json:"content"`
	Artifact core.Artifact `json:"artifact"`
	IsError  bool          `json:"is_error,omitempty"`
	ThreadID string        `json:"thread_id"`
	TurnID   string        `json:"turn_id"`
}

// Text returns the concatenated text items of the reply.
func (r *Reply) Text() string {
	var sb strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// InputError reports a query rejected before a turn started.
type InputError struct {
	Reason string
	Length int
	Limit  int
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid query: %s (length %d, limit %d)", e.Reason, e.Length, e.Limit)
}

// Is lets errors.Is(err, core.ErrInvalidInput) match.
func (e *InputError) Is(target error) bool { return target == core.ErrInvalidInput }

// Options configures a Secretary.
type Options struct {
	// Store persists checkpoints. Defaults to an in-memory store.
	Store core.CheckpointStore

	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Locale selects the prompt language and localized sentinels ("en", "ru").
	Locale string

	// TimeZone used for the current time in the system prompt. Defaults to
	// the TZ environment variable, then UTC.
	TimeZone string

	// MinQueryLength and MaxQueryLength bound accepted queries in runes.
	MinQueryLength int
	MaxQueryLength int

	// PromptTemplate overrides the localized system prompt. It is rendered as
	// a text/template with TimeZone, CurrentDate and Tools.
	PromptTemplate string

	// ThreadID pins the initial thread. Defaults to a random UUID.
	ThreadID string

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Engine receives additional engine options (policy, callbacks, tracer...).
	Engine []func(o *engine.Options)
}

// Secretary is the conversation facade. It is safe for concurrent use; turns
// on the same thread are serialized by the engine.
type Secretary struct {
	opts     Options
	engine   *engine.Engine
	location *time.Location
	prompt   string

	mu       sync.RWMutex
	threadID string
}

// New creates a Secretary over m and tools.
func New(m model.Model, tools []tool.Tool, optFns ...func(o *Options)) (*Secretary, error) {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		Locale:         "en",
		TimeZone:       os.Getenv("TZ"),
		MinQueryLength: DefaultMinQueryLength,
		MaxQueryLength: DefaultMaxQueryLength,
		Clock:          time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.TimeZone == "" {
		opts.TimeZone = "UTC"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxQueryLength <= opts.MinQueryLength {
		return nil, fmt.Errorf("%w: max query length must exceed min query length", core.ErrInvalidConfig)
	}

	loc, err := time.LoadLocation(opts.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", core.ErrInvalidConfig, opts.TimeZone, err)
	}

	s := &Secretary{opts: opts, location: loc}

	s.prompt, err = s.renderPrompt(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}

	lang := localeFor(opts.Locale)
	eng, err := engine.New(m, tools, s.prompt, append([]func(o *engine.Options){func(o *engine.Options) {
		o.Store = opts.Store
		o.Logger = opts.Logger
		o.Clock = opts.Clock
		o.NoDataText = lang.noToolData
		o.Invoker = tool.NewInvoker(
			tool.WithInvokerLogger(opts.Logger),
			tool.WithNoDataContent(lang.noData),
			tool.WithErrorIndicators(lang.indicators...),
		)
	}}, opts.Engine...)...)
	if err != nil {
		return nil, err
	}
	s.engine = eng

	s.threadID = opts.ThreadID
	if s.threadID == "" {
		s.threadID = core.NewID()
	}

	return s, nil
}

// Chat validates query and runs one turn on the current thread.
//
// Query errors are returned as *InputError before any state is touched. Tool
// failures are not errors: they produce a Reply with IsError set.
func (s *Secretary) Chat(ctx context.Context, query string, runtime core.RuntimeContext) (*Reply, error) {
	if err := s.validate(query); err != nil {
		return nil, err
	}

	threadID := s.ThreadID()
	res, err := s.engine.RunTurn(ctx, threadID, query, runtime)
	if err != nil {
		return nil, err
	}

	artifact := res.Artifact
	if artifact == nil {
		artifact = core.EmptyArtifact()
	}

	return &Reply{
		Content:  []ContentItem{{Type: "text", Text: res.Final.Content}},
		Artifact: artifact,
		IsError:  res.IsError(),
		ThreadID: threadID,
		TurnID:   res.TurnID,
	}, nil
}

func (s *Secretary) validate(query string) error {
	n := utf8.RuneCountInString(query)
	if n <= s.opts.MinQueryLength {
		return &InputError{Reason: "query is too short", Length: n, Limit: s.opts.MinQueryLength}
	}
	if n > s.opts.MaxQueryLength {
		return &InputError{Reason: "query is too long", Length: n, Limit: s.opts.MaxQueryLength}
	}
	return nil
}

// ThreadID returns the current thread id.
func (s *Secretary) ThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadID
}

// NewThread starts a fresh conversation and returns its id.
func (s *Secretary) NewThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = core.NewID()
	return s.threadID
}

// UseThread switches to an existing thread id, e.g. one listed from the store.
func (s *Secretary) UseThread(threadID string) error {
	if threadID == "" {
		return fmt.Errorf("%w: thread id is required", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = threadID
	return nil
}

// SystemPrompt returns the instructions given to the model.
func (s *Secretary) SystemPrompt() string { return s.prompt }

// Engine exposes the underlying engine, e.g. for store inspection.
func (s *Secretary) Engine() *engine.Engine { return s.engine }

// TimeZone returns the configured time zone name.
func (s *Secretary) TimeZone() string { return s.opts.TimeZone }

// CurrentDate formats the current time in the configured zone and locale.
func (s *Secretary) CurrentDate() string {
	return s.opts.Clock().In(s.location).Format(localeFor(s.opts.Locale).dateLayout)
}
