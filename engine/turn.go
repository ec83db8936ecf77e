package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/logging"
	"github.com/hupe1980/secretary/model"
	"github.com/hupe1980/secretary/tool"
)

// Write channels recorded for every node execution.
const (
	ChannelMessages = "messages"
	ChannelArtifact = "artifact"
	ChannelRoute    = "route"
)

// task is one node execution and the writes it produced. Writes are buffered
// and only reach the store once the turn ends in END or ROLLBACK.
type task struct {
	id     string
	state  State
	writes []core.Write
}

func (tk *task) write(channel string, value any) {
	tk.writes = append(tk.writes, core.Write{Channel: channel, Value: value})
}

// turn is the working state of one RunTurn call. It is confined to the
// goroutine running the turn.
type turn struct {
	e        *Engine
	id       string
	threadID string
	userText string
	limiter  *core.StepLimiter
	log      logging.Logger
	state    State

	working  []core.Message
	artifact core.Artifact
	calls    []core.ToolCall
	results  []tool.Result
	final    core.Message
	retries  int
	tasks    []*task
	result   *TurnResult
}

func (e *Engine) newTurn(threadID, userText string, cfg turnConfig) *turn {
	id := core.NewID()

	var log logging.Logger = e.opts.Logger
	if tl, ok := log.(*logging.TurnLogger); ok {
		log = tl.WithThread(threadID, id)
	}

	return &turn{
		e:        e,
		id:       id,
		threadID: threadID,
		userText: userText,
		limiter:  core.NewStepLimiter(cfg.maxSteps),
		log:      log,
		artifact: core.EmptyArtifact(),
	}
}

// run executes states until a terminal node produced a result.
func (t *turn) run(ctx context.Context) (*TurnResult, error) {
	state := StateStart
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := t.exec(ctx, state)
		if err != nil {
			return nil, err
		}
		if t.result != nil {
			break
		}

		cc := t.callbackContext(state)
		cc.From, cc.To = state, next
		if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnTransition, cc); err != nil {
			return nil, fmt.Errorf("%s callback: %w", CallbackOnTransition, err)
		}
		state = next
	}

	t.flush(ctx)
	return t.result, nil
}

func (t *turn) exec(ctx context.Context, s State) (State, error) {
	ctx, span := t.e.opts.Tracer.Start(ctx, "engine."+s.String(), trace.WithAttributes(
		attribute.String("thread.id", t.threadID),
		attribute.String("turn.id", t.id),
		attribute.Int("turn.step", t.limiter.Count()),
	))
	defer span.End()

	t.state = s
	tk := &task{id: core.NewID(), state: s}
	t.log.Debug("turn.state", "state", s.String(), "task_id", tk.id, "step", t.limiter.Count())

	var (
		next State
		err  error
	)
	switch s {
	case StateStart:
		next, err = t.start(ctx, tk)
	case StateAgent:
		next, err = t.agent(ctx, tk)
	case StateTools:
		next, err = t.runTools(ctx, tk)
	case StatePostTool:
		next, err = t.postTool(tk)
	case StateRollback:
		next, err = t.rollback(ctx)
	case StateEnd:
		next, err = t.end(ctx)
	default:
		err = fmt.Errorf("unknown state %s", s)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return next, err
	}

	tk.write(ChannelRoute, next.String())
	t.tasks = append(t.tasks, tk)
	return next, nil
}

// start seeds the working set with the committed history and the user input.
func (t *turn) start(ctx context.Context, tk *task) (State, error) {
	cp, err := t.e.opts.Store.Get(ctx, t.threadID)
	if err != nil {
		return StateStart, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp != nil {
		t.working = core.CloneMessages(cp.Messages)
	}

	t.append(tk, core.NewUserMessage(t.userText))
	return StateAgent, nil
}

// agent asks the model for the next message and branches on its tag.
func (t *turn) agent(ctx context.Context, tk *task) (State, error) {
	if err := t.limiter.Increment(); err != nil {
		return StateAgent, err
	}

	req := model.Request{
		Instructions: t.e.instructions,
		Messages:     core.CloneMessages(t.working),
		Tools:        t.e.tools.Definitions(),
	}

	cc := t.callbackContext(StateAgent)
	cc.Request = &req
	if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, cc); err != nil {
		return StateAgent, fmt.Errorf("%s callback: %w", CallbackBeforeModel, err)
	}

	start := t.e.opts.Clock()
	resp, err := t.e.model.Generate(ctx, req)
	t.logModelCall(resp, t.e.opts.Clock().Sub(start), err)
	if err != nil {
		return StateAgent, fmt.Errorf("model call: %w", err)
	}

	cc.Response = &resp
	if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterModel, cc); err != nil {
		return StateAgent, fmt.Errorf("%s callback: %w", CallbackAfterModel, err)
	}

	msg := resp.Message.Clone()
	msg.Role = core.RoleAssistant
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = t.e.opts.Clock().UTC()
	}

	switch resp.Kind {
	case model.KindAnswer:
		t.append(tk, msg)
		t.final = msg
		return StateEnd, nil
	case model.KindToolCalls:
		if !msg.HasToolCalls() {
			return StateAgent, fmt.Errorf("model returned a tool call response without calls")
		}
		t.append(tk, msg)
		t.calls = msg.ToolCalls
		return StateTools, nil
	default:
		return StateAgent, fmt.Errorf("model returned unknown response kind %s", resp.Kind)
	}
}

// runTools invokes every requested tool. Tool failures become error results;
// only callback failures and cancellation abort the turn.
func (t *turn) runTools(ctx context.Context, tk *task) (State, error) {
	t.results = nil
	for _, call := range t.calls {
		if err := ctx.Err(); err != nil {
			return StateTools, err
		}

		res, err := t.invoke(ctx, call)
		if err != nil {
			return StateTools, err
		}
		t.append(tk, res.Message())
		t.results = append(t.results, res)
	}

	if t.e.opts.Policy == PolicyLoose {
		if n := len(t.results); n > 0 {
			t.setArtifact(tk, t.results[n-1].Artifact)
		}
		return StateAgent, nil
	}
	return StatePostTool, nil
}

func (t *turn) invoke(ctx context.Context, call core.ToolCall) (tool.Result, error) {
	ctx, span := t.e.opts.Tracer.Start(ctx, "engine.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	cc := t.callbackContext(StateTools)
	cc.ToolCall = &call

	start := t.e.opts.Clock()

	var res tool.Result
	if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeTool, cc); err != nil {
		res = t.e.opts.Invoker.Failure(call, tool.NewToolError(call.Name, err.Error(), tool.CodeRejected))
	} else if tl, ok := t.e.tools.Lookup(call.Name); ok {
		res = t.e.opts.Invoker.Invoke(ctx, tl, call)
	} else {
		res = t.e.opts.Invoker.Failure(call, tool.NewToolError(call.Name, "unknown tool "+call.Name, tool.CodeNotFound))
	}

	span.SetAttributes(attribute.Bool("tool.is_error", res.IsError()))
	if tl, ok := t.log.(*logging.TurnLogger); ok {
		tl.LogToolCall(call.Name, t.e.opts.Clock().Sub(start), res.IsError())
	}

	cc.Result = &res
	if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterTool, cc); err != nil {
		return res, fmt.Errorf("%s callback: %w", CallbackAfterTool, err)
	}
	return res, nil
}

// postTool turns the latest tool outcome into the visible answer. When several
// tools ran in one step, the first failing result decides; otherwise the last.
func (t *turn) postTool(tk *task) (State, error) {
	if len(t.results) == 0 {
		return StatePostTool, fmt.Errorf("no tool result to validate")
	}

	subject := t.results[len(t.results)-1]
	for _, r := range t.results {
		if r.IsError() {
			subject = r
			break
		}
	}

	content := subject.Content
	if strings.TrimSpace(content) == "" {
		content = t.e.opts.NoDataText
	}

	answer := core.NewAssistantMessage(content)
	answer.ToolName = subject.ToolName
	answer.IsError = subject.IsError()
	if answer.IsError {
		answer.Status = core.StatusError
	}

	t.append(tk, answer)
	t.setArtifact(tk, subject.Artifact)
	t.final = answer

	if answer.IsError {
		return StateRollback, nil
	}
	return StateEnd, nil
}

// rollback either re-offers the failed attempt to the model or ends the turn
// without touching the checkpoint.
func (t *turn) rollback(ctx context.Context) (State, error) {
	cc := t.callbackContext(StateRollback)
	if n := len(t.results); n > 0 {
		cc.Result = &t.results[n-1]
	}
	if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnRollback, cc); err != nil {
		return StateRollback, fmt.Errorf("%s callback: %w", CallbackOnRollback, err)
	}

	if t.e.opts.Rollback == RollbackRetry && t.retries < t.e.opts.MaxRetries {
		t.retries++
		t.log.Info("turn.rollback", "action", "retry", "retry", t.retries, "tool", t.final.ToolName)
		return StateAgent, nil
	}

	t.log.Info("turn.rollback", "action", "end", "tool", t.final.ToolName)
	t.result = &TurnResult{
		ThreadID:   t.threadID,
		TurnID:     t.id,
		Final:      t.final.Clone(),
		Artifact:   t.artifact.Clone(),
		RolledBack: true,
		Steps:      t.limiter.Count(),
	}
	return StateRollback, nil
}

// end commits the working set as the thread's new checkpoint.
func (t *turn) end(ctx context.Context) (State, error) {
	cp := core.NewCheckpoint(t.threadID, t.working, t.artifact)
	if err := t.e.opts.Store.Put(ctx, t.threadID, cp); err != nil {
		return StateEnd, fmt.Errorf("commit checkpoint: %w", err)
	}

	t.log.Info("turn.commit", "checkpoint_id", cp.ID, "messages", len(cp.Messages))

	cc := t.callbackContext(StateEnd)
	cc.Checkpoint = &cp
	if err := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnCommit, cc); err != nil {
		// the checkpoint is already stored
		t.log.Warn("turn.commit.callback_failed", "error", err)
	}

	t.result = &TurnResult{
		ThreadID:  t.threadID,
		TurnID:    t.id,
		Final:     t.final.Clone(),
		Artifact:  t.artifact.Clone(),
		Steps:     t.limiter.Count(),
		Committed: true,
	}
	return StateEnd, nil
}

// flush appends the buffered audit writes. Audit failures are logged only:
// the checkpoint outcome of the turn is already decided.
func (t *turn) flush(ctx context.Context) {
	for _, tk := range t.tasks {
		if err := t.e.opts.Store.AppendWrite(ctx, t.threadID, tk.id, tk.writes); err != nil {
			t.log.Warn("turn.audit.failed", "task_id", tk.id, "state", tk.state.String(), "error", err)
			return
		}
	}
}

func (t *turn) fail(ctx context.Context, err error) {
	t.log.Error("turn.failed", "error", err, "step", t.limiter.Count())

	cc := t.callbackContext(t.state)
	cc.Err = err
	if cbErr := t.e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnError, cc); cbErr != nil {
		t.log.Warn("turn.error.callback_failed", "error", cbErr)
	}
}

func (t *turn) append(tk *task, msg core.Message) {
	t.working = append(t.working, msg)
	tk.write(ChannelMessages, msg.Clone())
}

func (t *turn) setArtifact(tk *task, a core.Artifact) {
	t.artifact = a.Clone()
	if t.artifact == nil {
		t.artifact = core.EmptyArtifact()
	}
	tk.write(ChannelArtifact, t.artifact.Clone())
}

func (t *turn) callbackContext(s State) *CallbackContext {
	return &CallbackContext{
		ThreadID: t.threadID,
		TurnID:   t.id,
		State:    s,
		Step:     t.limiter.Count(),
		Metadata: map[string]any{},
	}
}

func (t *turn) logModelCall(resp model.Response, dur time.Duration, err error) {
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	name := t.e.model.Info().Name
	if tl, ok := t.log.(*logging.TurnLogger); ok {
		tl.LogModelCall(name, tokens, dur, err)
		return
	}
	t.log.Debug("model.call", "model", name, "tokens", tokens, "duration", dur, "error", err)
}
