package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/internal/util"
	"github.com/hupe1980/secretary/logging"
)

// DefaultErrorIndicators are the substrings that mark tool text as an error.
var DefaultErrorIndicators = []string{"Error"}

// Invoker is the tool invocation adapter. It is safe for concurrent use.
type Invoker struct {
	logger     logging.Logger
	indicators []string
	noData     string
	validate   bool
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithInvokerLogger sets the logger used for per-call diagnostics.
func WithInvokerLogger(l logging.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithErrorIndicators replaces the text heuristic substrings. An empty list
// disables the text signal.
func WithErrorIndicators(indicators ...string) InvokerOption {
	return func(i *Invoker) {
		i.indicators = append([]string(nil), indicators...)
	}
}

// WithNoDataContent overrides the content used when a tool returns no text.
func WithNoDataContent(text string) InvokerOption {
	return func(i *Invoker) {
		if text != "" {
			i.noData = text
		}
	}
}

// WithoutValidation skips JSON schema validation of call arguments.
func WithoutValidation() InvokerOption {
	return func(i *Invoker) { i.validate = false }
}

// NewInvoker creates an Invoker with the given options.
func NewInvoker(opts ...InvokerOption) *Invoker {
	i := &Invoker{
		logger:     logging.NoOpLogger{},
		indicators: append([]string(nil), DefaultErrorIndicators...),
		noData:     NoDataContent,
		validate:   true,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke calls t with the arguments of call and normalizes the outcome.
// It never returns an error; failures are error-flagged Results.
func (i *Invoker) Invoke(ctx context.Context, t Tool, call core.ToolCall) Result {
	if t == nil {
		return i.Failure(call, NewToolError(call.Name, "tool not found", CodeNotFound))
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if i.validate {
		if err := util.ValidateParameters(args, t.Parameters()); err != nil {
			te := NewToolError(t.Name(), err.Error(), CodeValidation)
			var ve *util.ValidationError
			if errors.As(err, &ve) {
				te.Details = ve
			}
			return i.Failure(call, te)
		}
	}

	start := time.Now()

	var (
		out Output
		err error
		pc  panics.Catcher
	)
	pc.Try(func() {
		out, err = t.Call(ctx, args)
	})
	if r := pc.Recovered(); r != nil {
		err = NewToolError(t.Name(), fmt.Sprint(r.Value), CodePanic)
	}

	var res Result
	if err != nil {
		var te *ToolError
		if !errors.As(err, &te) {
			te = NewToolError(t.Name(), err.Error(), CodeExecution)
		}
		res = i.Failure(call, te)
	} else {
		res = i.Normalize(call, out)
	}

	i.logger.Debug("tool.call.completed",
		"tool", call.Name,
		"call_id", call.ID,
		"duration", time.Since(start),
		"is_error", res.IsError(),
	)

	return res
}

// Normalize converts a raw Output into a Result and computes error signals.
func (i *Invoker) Normalize(call core.ToolCall, out Output) Result {
	content := firstText(out.Content)
	if content == "" {
		content = i.noData
	}

	artifact := out.Artifact.Plain()
	if artifact == nil {
		artifact = core.EmptyArtifact()
	}

	return Result{
		ToolName:      call.Name,
		CallID:        call.ID,
		Content:       content,
		Artifact:      artifact,
		Annotated:     out.IsError,
		TextIndicated: i.indicated(content),
		Status:        out.Status,
	}
}

// Failure builds the error Result for a call that could not complete.
func (i *Invoker) Failure(call core.ToolCall, err *ToolError) Result {
	i.logger.Warn("tool.call.failed",
		"tool", call.Name,
		"call_id", call.ID,
		"code", err.Code,
		"error", err.Message,
	)

	content := "Error: " + err.Message
	return Result{
		ToolName:      call.Name,
		CallID:        call.ID,
		Content:       content,
		Artifact:      core.EmptyArtifact(),
		Annotated:     true,
		TextIndicated: i.indicated(content),
		Status:        core.StatusError,
	}
}

func (i *Invoker) indicated(content string) bool {
	for _, ind := range i.indicators {
		if ind != "" && strings.Contains(content, ind) {
			return true
		}
	}
	return false
}

func firstText(items []ContentItem) string {
	for _, it := range items {
		if it.Text != "" && (it.Type == "" || it.Type == "text") {
			return it.Text
		}
	}
	return ""
}
