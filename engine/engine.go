package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/secretary/checkpoint"
	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/logging"
	"github.com/hupe1980/secretary/model"
	"github.com/hupe1980/secretary/tool"
)

// TracerName is the instrumentation scope used for engine spans.
const TracerName = "github.com/hupe1980/secretary/engine"

// DefaultNoDataText is the POST_TOOL answer used when a tool message is empty.
const DefaultNoDataText = "The tool returned no data"

// DefaultMaxRetries bounds RollbackRetry re-entries per turn.
const DefaultMaxRetries = 1

// Options configures an Engine using the functional options pattern.
//
// Example:
//
//	eng, err := engine.New(m, tools, instructions, func(o *engine.Options) {
//	    o.Policy = engine.PolicyLoose
//	    o.Store = sqlStore
//	    o.Logger = logger
//	})
type Options struct {
	// Policy selects strict (POST_TOOL gate) or loose tool handling.
	Policy Policy

	// Rollback selects what happens to a failed attempt in strict mode.
	Rollback RollbackPolicy

	// MaxRetries bounds RollbackRetry re-entries. Defaults to 1.
	MaxRetries int

	// MaxSteps bounds model calls per turn. Defaults to core.DefaultMaxSteps.
	MaxSteps int

	// Admission selects how concurrent turns for one thread are handled.
	Admission Admission

	// Store persists checkpoints. Defaults to checkpoint.NewInMemoryStore().
	Store core.CheckpointStore

	// Logger receives structured turn logs. Defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Callbacks are run at turn lifecycle points. May be nil.
	Callbacks *CallbackManager

	// Tracer creates spans. Defaults to the global OpenTelemetry provider.
	Tracer trace.Tracer

	// Invoker normalizes tool results. Defaults to tool.NewInvoker with Logger.
	Invoker *tool.Invoker

	// NoDataText replaces empty tool content in the POST_TOOL answer.
	NoDataText string

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Engine runs turns of the conversation state machine. It is safe for
// concurrent use; at most one turn per thread runs at a time.
type Engine struct {
	model        model.Model
	tools        *tool.Registry
	instructions string
	opts         Options
	gate         *threadGate
}

// New creates an Engine. It rejects a nil model, empty instructions and an
// empty or inconsistent tool set with core.ErrInvalidConfig.
func New(m model.Model, tools []tool.Tool, instructions string, optFns ...func(o *Options)) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: model is required", core.ErrInvalidConfig)
	}
	if strings.TrimSpace(instructions) == "" {
		return nil, fmt.Errorf("%w: instructions are required", core.ErrInvalidConfig)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("%w: at least one tool is required", core.ErrInvalidConfig)
	}

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}

	opts := Options{
		Policy:     PolicyStrict,
		Rollback:   RollbackEnd,
		MaxRetries: DefaultMaxRetries,
		MaxSteps:   core.DefaultMaxSteps,
		Admission:  AdmissionWait,
		Logger:     logging.NoOpLogger{},
		NoDataText: DefaultNoDataText,
		Clock:      time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.Store == nil {
		opts.Store = checkpoint.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}
	if opts.Invoker == nil {
		opts.Invoker = tool.NewInvoker(tool.WithInvokerLogger(opts.Logger))
	}
	if opts.NoDataText == "" {
		opts.NoDataText = DefaultNoDataText
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Engine{
		model:        m,
		tools:        registry,
		instructions: instructions,
		opts:         opts,
		gate:         newThreadGate(),
	}, nil
}

// validate checks o and replaces empty policy modes with their defaults.
func (o *Options) validate() error {
	var err error
	if o.Policy, err = ParsePolicy(string(o.Policy)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if o.Rollback, err = ParseRollbackPolicy(string(o.Rollback)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if o.Admission, err = ParseAdmission(string(o.Admission)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", core.ErrInvalidConfig)
	}
	if o.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must not be negative", core.ErrInvalidConfig)
	}
	return nil
}

// TurnOption adjusts a single RunTurn call.
type TurnOption func(*turnConfig)

type turnConfig struct {
	maxSteps int
}

// WithMaxSteps overrides the model-call budget of one turn.
func WithMaxSteps(n int) TurnOption {
	return func(c *turnConfig) { c.maxSteps = n }
}

// TurnResult is the outcome of a turn that reached END or ROLLBACK.
type TurnResult struct {
	ThreadID string
	TurnID   string

	// Final is the visible answer. For a rolled back turn it carries the
	// error-flagged tool content.
	Final core.Message

	// Artifact is the most recent tool artifact of the turn, or empty.
	Artifact core.Artifact

	// RolledBack reports that the attempt was discarded.
	RolledBack bool

	// Steps is the number of model calls made.
	Steps int

	// Committed reports that a new checkpoint was stored.
	Committed bool
}

// IsError reports whether the visible answer is error-flagged.
func (r *TurnResult) IsError() bool { return r.Final.IsError }

// RunTurn drives one user input through the state machine.
//
// Tool failures never surface as errors; they become error-flagged content.
// Errors are returned for input problems (core.ErrInvalidInput), a busy
// thread under AdmissionReject (core.ErrTurnInFlight), an exhausted budget
// (core.ErrStepLimitExceeded), store failures (core.ErrStoreUnavailable),
// model failures, callback failures and ctx cancellation. In all of those
// cases the thread's checkpoint is left as it was before the turn.
func (e *Engine) RunTurn(
	ctx context.Context,
	threadID, userText string,
	runtime core.RuntimeContext,
	opts ...TurnOption,
) (*TurnResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", core.ErrInvalidInput)
	}

	cfg := turnConfig{maxSteps: e.opts.MaxSteps}
	for _, opt := range opts {
		opt(&cfg)
	}

	release, err := e.gate.acquire(ctx, threadID, e.opts.Admission)
	if err != nil {
		return nil, err
	}
	defer release()

	t := e.newTurn(threadID, userText, cfg)

	ctx = core.WithRuntimeContext(ctx, runtime)
	ctx, span := e.opts.Tracer.Start(ctx, "engine.turn", trace.WithAttributes(
		attribute.String("thread.id", threadID),
		attribute.String("turn.id", t.id),
		attribute.String("turn.policy", string(e.opts.Policy)),
	))
	defer span.End()

	start := e.opts.Clock()
	t.log.Info("turn.start", "policy", string(e.opts.Policy), "max_steps", t.limiter.Max())

	res, err := t.run(ctx)

	span.SetAttributes(attribute.Int("turn.step", t.limiter.Count()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.fail(ctx, err)
	} else {
		span.SetAttributes(attribute.Bool("turn.rolled_back", res.RolledBack))
	}

	if tl, ok := t.log.(*logging.TurnLogger); ok {
		tl.LogTurn(t.limiter.Count(), e.opts.Clock().Sub(start), res != nil && res.RolledBack, err)
	}

	return res, err
}

// Store returns the checkpoint store backing the engine.
func (e *Engine) Store() core.CheckpointStore { return e.opts.Store }

// Tools returns the model-facing definitions of the registered tools.
func (e *Engine) Tools() []tool.Definition { return e.tools.Definitions() }

// Instructions returns the fixed system instructions.
func (e *Engine) Instructions() string { return e.instructions }

// History returns the committed messages of a thread, or nil for a fresh thread.
func (e *Engine) History(ctx context.Context, threadID string) ([]core.Message, error) {
	cp, err := e.opts.Store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, nil
	}
	return cp.Messages, nil
}

// Busy reports whether a turn for threadID is currently running.
func (e *Engine) Busy(threadID string) bool { return e.gate.busy(threadID) }
