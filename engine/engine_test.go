package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/secretary/checkpoint"
	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/internal/testutil"
	"github.com/hupe1980/secretary/model"
	"github.com/hupe1980/secretary/tool"
)

const instructions = "You are a virtual secretary."

func listEvents() *testutil.StubTool {
	return testutil.NewStubTool("list-events",
		tool.TextOutput("3 events found").WithArtifact(core.Artifact{"count": 3}))
}

func bookFlight() *testutil.StubTool {
	return testutil.NewStubTool("book-flight", tool.Output{
		Content: []tool.ContentItem{{Type: "text", Text: "Error: no seats"}},
		Status:  core.StatusError,
	})
}

func callTool(name string) model.Response {
	return model.NewToolCalls("", core.ToolCall{Name: name, Arguments: map[string]any{}})
}

func newEngine(t *testing.T, m model.Model, tools []tool.Tool, optFns ...func(o *Options)) (*Engine, *checkpoint.InMemoryStore) {
	t.Helper()
	store := checkpoint.NewInMemoryStore()
	optFns = append([]func(o *Options){func(o *Options) { o.Store = store }}, optFns...)
	eng, err := New(m, tools, instructions, optFns...)
	require.NoError(t, err)
	return eng, store
}

func TestRunTurn_HappyPath(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").AddResponse(callTool("list-events"))
	events := listEvents()
	eng, store := newEngine(t, m, []tool.Tool{events})

	res, err := eng.RunTurn(ctx, "t1", "what's my schedule today", nil)
	require.NoError(t, err)

	assert.Equal(t, "3 events found", res.Final.Content)
	assert.False(t, res.IsError())
	assert.True(t, res.Committed)
	assert.False(t, res.RolledBack)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, core.Artifact{"count": 3}, res.Artifact)

	cp, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.Artifact{"count": 3}, cp.Artifact)
	require.Len(t, cp.Messages, 4)
	assert.Equal(t, core.RoleUser, cp.Messages[0].Role)
	assert.True(t, cp.Messages[1].HasToolCalls())
	assert.Equal(t, core.RoleTool, cp.Messages[2].Role)
	assert.Equal(t, "3 events found", cp.Messages[3].Content)
	assert.Equal(t, 1, events.Calls())

	req := m.Requests()[0]
	assert.Equal(t, instructions, req.Instructions)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "list-events", req.Tools[0].Name)
}

func TestRunTurn_PlainAnswer(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").AddResponse(model.NewAnswer("hello"))
	eng, store := newEngine(t, m, []tool.Tool{listEvents()})

	res, err := eng.RunTurn(ctx, "t1", "hi there", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Final.Content)
	assert.Empty(t, res.Artifact)

	cp, _ := store.Get(ctx, "t1")
	require.NotNil(t, cp)
	assert.Len(t, cp.Messages, 2)
	assert.NotNil(t, cp.Artifact)
	assert.Empty(t, cp.Artifact)
}

func TestRunTurn_HistoryCarriesOver(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").
		AddResponse(model.NewAnswer("first")).
		AddResponse(model.NewAnswer("second"))
	eng, _ := newEngine(t, m, []tool.Tool{listEvents()})

	_, err := eng.RunTurn(ctx, "t1", "one", nil)
	require.NoError(t, err)
	_, err = eng.RunTurn(ctx, "t1", "two", nil)
	require.NoError(t, err)

	second := m.Requests()[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "one", second.Messages[0].Content)
	assert.Equal(t, "first", second.Messages[1].Content)
	assert.Equal(t, "two", second.Messages[2].Content)

	history, err := eng.History(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestRunTurn_RollbackLeavesCheckpointUnchanged(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").
		AddResponse(model.NewAnswer("hello")).
		AddResponse(callTool("book-flight"))
	eng, store := newEngine(t, m, []tool.Tool{bookFlight()})

	_, err := eng.RunTurn(ctx, "t1", "hi there", nil)
	require.NoError(t, err)
	before, _ := store.Get(ctx, "t1")

	res, err := eng.RunTurn(ctx, "t1", "book a flight", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError())
	assert.True(t, res.RolledBack)
	assert.False(t, res.Committed)
	assert.Equal(t, "Error: no seats", res.Final.Content)

	after, _ := store.Get(ctx, "t1")
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, len(before.Messages), len(after.Messages))
}

func TestRunTurn_RollbackOnFreshThreadPersistsNothing(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").AddResponse(callTool("book-flight"))
	eng, store := newEngine(t, m, []tool.Tool{bookFlight()})

	res, err := eng.RunTurn(ctx, "t1", "book a flight", nil)
	require.NoError(t, err)
	assert.True(t, res.RolledBack)

	cp, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestRunTurn_ToolExecutionFailureRollsBack(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse(callTool("book-flight"))
	failing := testutil.NewFailingTool("book-flight", errors.New("upstream down"))
	eng, _ := newEngine(t, m, []tool.Tool{failing})

	res, err := eng.RunTurn(context.Background(), "t1", "book a flight", nil)
	require.NoError(t, err)
	assert.True(t, res.RolledBack)
	assert.Equal(t, "Error: upstream down", res.Final.Content)
}

func TestRunTurn_UnknownToolRollsBack(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse(callTool("does-not-exist"))
	eng, _ := newEngine(t, m, []tool.Tool{listEvents()})

	res, err := eng.RunTurn(context.Background(), "t1", "do something", nil)
	require.NoError(t, err)
	assert.True(t, res.RolledBack)
	assert.Contains(t, res.Final.Content, "does-not-exist")
}

func TestRunTurn_StepLimit(t *testing.T) {
	tests := []struct {
		name  string
		opts  []TurnOption
		calls int
	}{
		{"default", nil, core.DefaultMaxSteps},
		{"override", []TurnOption{WithMaxSteps(3)}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := model.NewMockModel("loop").AddResponse(callTool("list-events")).RepeatLast()
			eng, store := newEngine(t, m, []tool.Tool{listEvents()}, func(o *Options) {
				o.Policy = PolicyLoose
			})

			res, err := eng.RunTurn(ctx, "t1", "loop forever", nil, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, core.ErrStepLimitExceeded)

			var sle *core.StepLimitError
			require.ErrorAs(t, err, &sle)
			assert.Equal(t, tt.calls, sle.Limit)
			assert.Equal(t, tt.calls, m.Calls())

			cp, _ := store.Get(ctx, "t1")
			assert.Nil(t, cp)
			writes, _ := store.Writes(ctx, "t1")
			assert.Empty(t, writes)
		})
	}
}

func TestRunTurn_LoosePolicyFeedsErrorsBack(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").
		AddResponse(callTool("book-flight")).
		AddResponse(model.NewAnswer("Sorry, there are no seats left."))
	eng, store := newEngine(t, m, []tool.Tool{bookFlight()}, func(o *Options) {
		o.Policy = PolicyLoose
	})

	res, err := eng.RunTurn(ctx, "t1", "book a flight", nil)
	require.NoError(t, err)
	assert.False(t, res.RolledBack)
	assert.True(t, res.Committed)
	assert.Equal(t, "Sorry, there are no seats left.", res.Final.Content)
	assert.Equal(t, 2, res.Steps)

	second := m.Requests()[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, core.RoleTool, last.Role)
	assert.True(t, last.IsError)

	cp, _ := store.Get(ctx, "t1")
	assert.Len(t, cp.Messages, 4)
}

func TestRunTurn_LoosePolicyKeepsLastToolArtifact(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").
		AddResponse(callTool("list-events")).
		AddResponse(model.NewAnswer("You have 3 events today."))
	eng, store := newEngine(t, m, []tool.Tool{listEvents()}, func(o *Options) {
		o.Policy = PolicyLoose
	})

	res, err := eng.RunTurn(ctx, "t1", "what's my schedule today", nil)
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, "You have 3 events today.", res.Final.Content)
	assert.Equal(t, core.Artifact{"count": 3}, res.Artifact)

	cp, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, core.Artifact{"count": 3}, cp.Artifact)
	assert.Len(t, cp.Messages, 4)
}

func TestRunTurn_BlankToolContentUsesNoDataText(t *testing.T) {
	tests := []struct {
		name string
		opts []func(o *Options)
		want string
	}{
		{"default", nil, DefaultNoDataText},
		{"override", []func(o *Options){func(o *Options) { o.NoDataText = "Nothing on the calendar" }}, "Nothing on the calendar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			blank := testutil.NewStubTool("list-events", tool.TextOutput("   "))
			m := model.NewMockModel("mock").AddResponse(callTool("list-events"))
			eng, store := newEngine(t, m, []tool.Tool{blank}, tt.opts...)

			res, err := eng.RunTurn(ctx, "t1", "what's my schedule today", nil)
			require.NoError(t, err)
			assert.False(t, res.IsError())
			assert.True(t, res.Committed)
			assert.Equal(t, tt.want, res.Final.Content)

			cp, _ := store.Get(ctx, "t1")
			require.NotNil(t, cp)
			assert.Equal(t, tt.want, cp.Messages[len(cp.Messages)-1].Content)
		})
	}
}

func TestRunTurn_RetryPolicy(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		ctx := context.Background()
		m := model.NewMockModel("mock").
			AddResponse(callTool("book-flight")).
			AddResponse(model.NewAnswer("I could not book the flight."))
		eng, store := newEngine(t, m, []tool.Tool{bookFlight()}, func(o *Options) {
			o.Rollback = RollbackRetry
		})

		res, err := eng.RunTurn(ctx, "t1", "book a flight", nil)
		require.NoError(t, err)
		assert.True(t, res.Committed)
		assert.False(t, res.IsError())
		assert.Equal(t, "I could not book the flight.", res.Final.Content)

		cp, _ := store.Get(ctx, "t1")
		// user, call, tool error, error summary, final answer
		assert.Len(t, cp.Messages, 5)
	})

	t.Run("exhausted", func(t *testing.T) {
		m := model.NewMockModel("mock").AddResponse(callTool("book-flight")).RepeatLast()
		eng, _ := newEngine(t, m, []tool.Tool{bookFlight()}, func(o *Options) {
			o.Rollback = RollbackRetry
			o.MaxRetries = 2
		})

		res, err := eng.RunTurn(context.Background(), "t1", "book a flight", nil)
		require.NoError(t, err)
		assert.True(t, res.RolledBack)
		assert.Equal(t, 3, m.Calls())
	})
}

func TestRunTurn_CheckpointMonotonicity(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").
		AddResponse(model.NewAnswer("hello")).
		AddResponse(callTool("book-flight")).
		AddResponse(callTool("list-events")).
		AddResponse(model.NewAnswer("bye"))
	eng, store := newEngine(t, m, []tool.Tool{bookFlight(), listEvents()})

	prev := 0
	for _, input := range []string{"hi", "book a flight", "schedule", "bye"} {
		_, err := eng.RunTurn(ctx, "t1", input, nil)
		require.NoError(t, err)

		cp, _ := store.Get(ctx, "t1")
		require.NotNil(t, cp)
		assert.GreaterOrEqual(t, len(cp.Messages), prev)
		prev = len(cp.Messages)
	}
}

func TestRunTurn_ModelFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").AddError(errors.New("overloaded"))
	eng, store := newEngine(t, m, []tool.Tool{listEvents()})

	_, err := eng.RunTurn(ctx, "t1", "hi there", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")

	cp, _ := store.Get(ctx, "t1")
	assert.Nil(t, cp)
}

func TestRunTurn_StoreFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	sqlStore, err := checkpoint.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlStore.Close())

	eng, err := New(model.NewMockModel("mock"), []tool.Tool{listEvents()}, instructions, func(o *Options) {
		o.Store = sqlStore
	})
	require.NoError(t, err)

	_, err = eng.RunTurn(ctx, "t1", "hi there", nil)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestRunTurn_RuntimeContextReachesTools(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse(callTool("list-events"))
	events := listEvents()
	eng, _ := newEngine(t, m, []tool.Tool{events})

	_, err := eng.RunTurn(context.Background(), "t1", "schedule", core.RuntimeContext{"user_id": "u-1"})
	require.NoError(t, err)

	user, ok := events.LastRuntime().String("user_id")
	assert.True(t, ok)
	assert.Equal(t, "u-1", user)
}

// blockingModel blocks every Generate call until ctx is done or release is closed.
type blockingModel struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingModel() *blockingModel {
	return &blockingModel{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingModel) Generate(ctx context.Context, _ model.Request) (model.Response, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-ctx.Done():
		return model.Response{}, ctx.Err()
	case <-b.release:
		return model.NewAnswer("done"), nil
	}
}

func (b *blockingModel) Info() model.Info { return model.Info{Name: "blocking", Provider: "test"} }

func TestRunTurn_CancellationKeepsCheckpoint(t *testing.T) {
	store := checkpoint.NewInMemoryStore()
	prior := testutil.NewCheckpointBuilder("t1").Exchange("hi", "hello").Build()
	require.NoError(t, store.Put(context.Background(), "t1", prior))

	bm := newBlockingModel()
	eng, err := New(bm, []tool.Tool{listEvents()}, instructions, func(o *Options) { o.Store = store })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-bm.entered
		cancel()
	}()

	_, err = eng.RunTurn(ctx, "t1", "long question", nil)
	assert.ErrorIs(t, err, context.Canceled)

	cp, _ := store.Get(context.Background(), "t1")
	assert.Equal(t, prior.ID, cp.ID)
	assert.Len(t, cp.Messages, 2)
	assert.False(t, eng.Busy("t1"))
}

func TestRunTurn_Admission(t *testing.T) {
	t.Run("reject", func(t *testing.T) {
		bm := newBlockingModel()
		eng, _ := newEngine(t, bm, []tool.Tool{listEvents()}, func(o *Options) {
			o.Admission = AdmissionReject
		})

		done := make(chan error, 1)
		go func() {
			_, err := eng.RunTurn(context.Background(), "t1", "first", nil)
			done <- err
		}()
		<-bm.entered
		assert.True(t, eng.Busy("t1"))

		_, err := eng.RunTurn(context.Background(), "t1", "second", nil)
		assert.ErrorIs(t, err, core.ErrTurnInFlight)

		// other threads are not affected by the busy one
		assert.False(t, eng.Busy("t2"))

		close(bm.release)
		require.NoError(t, <-done)
	})

	t.Run("wait honors ctx", func(t *testing.T) {
		bm := newBlockingModel()
		eng, _ := newEngine(t, bm, []tool.Tool{listEvents()})

		done := make(chan error, 1)
		go func() {
			_, err := eng.RunTurn(context.Background(), "t1", "first", nil)
			done <- err
		}()
		<-bm.entered

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := eng.RunTurn(ctx, "t1", "second", nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(bm.release)
		require.NoError(t, <-done)

		res, err := eng.RunTurn(context.Background(), "t1", "third", nil)
		require.NoError(t, err)
		assert.Equal(t, "done", res.Final.Content)
	})
}

func TestRunTurn_AuditWrites(t *testing.T) {
	ctx := context.Background()
	m := model.NewMockModel("mock").AddResponse(callTool("list-events"))
	eng, store := newEngine(t, m, []tool.Tool{listEvents()})

	_, err := eng.RunTurn(ctx, "t1", "schedule", nil)
	require.NoError(t, err)

	records, err := store.Writes(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 5)

	var routes []any
	ids := map[string]bool{}
	for _, rec := range records {
		ids[rec.TaskID] = true
		for _, w := range rec.Writes {
			if w.Channel == ChannelRoute {
				routes = append(routes, w.Value)
			}
		}
	}
	assert.Len(t, ids, 5)
	assert.Equal(t, []any{"agent", "tools", "post_tool", "end", "end"}, routes)
}

type mockCallback struct {
	mock.Mock
	typ CallbackType
}

func (m *mockCallback) Type() CallbackType { return m.typ }

func (m *mockCallback) Execute(ctx context.Context, cc *CallbackContext) error {
	return m.Called(ctx, cc).Error(0)
}

func TestRunTurn_Callbacks(t *testing.T) {
	t.Run("transitions and commit", func(t *testing.T) {
		var edges []string
		cbs := NewCallbackManager()
		cbs.RegisterCallback(NewFunctionCallback(CallbackOnTransition, func(_ context.Context, cc *CallbackContext) error {
			edges = append(edges, cc.From.String()+">"+cc.To.String())
			return nil
		}))

		commit := &mockCallback{typ: CallbackOnCommit}
		commit.On("Execute", mock.Anything, mock.MatchedBy(func(cc *CallbackContext) bool {
			return cc.Checkpoint != nil && len(cc.Checkpoint.Messages) == 4
		})).Return(nil).Once()
		cbs.RegisterCallback(commit)

		m := model.NewMockModel("mock").AddResponse(callTool("list-events"))
		eng, _ := newEngine(t, m, []tool.Tool{listEvents()}, func(o *Options) { o.Callbacks = cbs })

		_, err := eng.RunTurn(context.Background(), "t1", "schedule", nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"start>agent", "agent>tools", "tools>post_tool", "post_tool>end"}, edges)
		commit.AssertExpectations(t)
	})

	t.Run("before_tool veto becomes error result", func(t *testing.T) {
		cbs := NewCallbackManager()
		cbs.RegisterCallback(NewFunctionCallback(CallbackBeforeTool, func(_ context.Context, cc *CallbackContext) error {
			return errors.New("booking requires confirmation")
		}))

		booking := testutil.NewStubTool("book-flight", tool.TextOutput("booked"))
		m := model.NewMockModel("mock").AddResponse(callTool("book-flight"))
		eng, _ := newEngine(t, m, []tool.Tool{booking}, func(o *Options) { o.Callbacks = cbs })

		res, err := eng.RunTurn(context.Background(), "t1", "book a flight", nil)
		require.NoError(t, err)
		assert.True(t, res.RolledBack)
		assert.Equal(t, "Error: booking requires confirmation", res.Final.Content)
		assert.Equal(t, 0, booking.Calls())
	})

	t.Run("before_model error is fatal", func(t *testing.T) {
		cbs := NewCallbackManager()
		cbs.RegisterCallback(NewFunctionCallback(CallbackBeforeModel, func(context.Context, *CallbackContext) error {
			return errors.New("quota exhausted")
		}))

		var failed error
		cbs.RegisterCallback(NewFunctionCallback(CallbackOnError, func(_ context.Context, cc *CallbackContext) error {
			failed = cc.Err
			return nil
		}))

		eng, _ := newEngine(t, model.NewMockModel("mock"), []tool.Tool{listEvents()}, func(o *Options) { o.Callbacks = cbs })

		_, err := eng.RunTurn(context.Background(), "t1", "hi there", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exhausted")
		assert.Equal(t, err, failed)
	})
}

func TestRunTurn_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	m := model.NewMockModel("mock").AddResponse(callTool("list-events"))
	eng, _ := newEngine(t, m, []tool.Tool{listEvents()}, func(o *Options) {
		o.Tracer = tp.Tracer("test")
	})

	_, err := eng.RunTurn(context.Background(), "t1", "schedule", nil)
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["engine.turn"])
	assert.Equal(t, 1, names["engine.start"])
	assert.Equal(t, 1, names["engine.agent"])
	assert.Equal(t, 1, names["engine.tools"])
	assert.Equal(t, 1, names["engine.tool"])
	assert.Equal(t, 1, names["engine.post_tool"])
	assert.Equal(t, 1, names["engine.end"])
}

func TestNew_EmptyModesUseDefaults(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	m := model.NewMockModel("mock").AddResponse(model.NewAnswer("hello"))
	eng, _ := newEngine(t, m, []tool.Tool{listEvents()}, func(o *Options) {
		o.Policy = ""
		o.Rollback = ""
		o.Admission = ""
		o.Tracer = tp.Tracer("test")
	})

	assert.Equal(t, PolicyStrict, eng.opts.Policy)
	assert.Equal(t, RollbackEnd, eng.opts.Rollback)
	assert.Equal(t, AdmissionWait, eng.opts.Admission)

	_, err := eng.RunTurn(context.Background(), "t1", "hi there", nil)
	require.NoError(t, err)

	var policy attribute.Value
	for _, s := range sr.Ended() {
		if s.Name() != "engine.turn" {
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "turn.policy" {
				policy = kv.Value
			}
		}
	}
	assert.Equal(t, string(PolicyStrict), policy.AsString())
}

func TestNew_Validation(t *testing.T) {
	m := model.NewMockModel("mock")
	tools := []tool.Tool{listEvents()}

	tests := []struct {
		name         string
		model        model.Model
		tools        []tool.Tool
		instructions string
		opt          func(o *Options)
	}{
		{"nil model", nil, tools, instructions, nil},
		{"empty instructions", m, tools, "  ", nil},
		{"no tools", m, nil, instructions, nil},
		{"duplicate tools", m, []tool.Tool{listEvents(), listEvents()}, instructions, nil},
		{"bad policy", m, tools, instructions, func(o *Options) { o.Policy = "sometimes" }},
		{"bad rollback", m, tools, instructions, func(o *Options) { o.Rollback = "undo" }},
		{"negative retries", m, tools, instructions, func(o *Options) { o.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []func(o *Options)
			if tt.opt != nil {
				opts = append(opts, tt.opt)
			}
			_, err := New(tt.model, tt.tools, tt.instructions, opts...)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestRunTurn_RequiresThreadID(t *testing.T) {
	eng, _ := newEngine(t, model.NewMockModel("mock"), []tool.Tool{listEvents()})
	_, err := eng.RunTurn(context.Background(), "", "hi", nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
