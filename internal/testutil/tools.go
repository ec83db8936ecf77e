package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/tool"
)

// StubTool is a tool returning a fixed output or error. It records the
// arguments and runtime context of every call.
type StubTool struct {
	name   string
	output tool.Output
	err    error

	mu       sync.Mutex
	calls    []map[string]any
	runtimes []core.RuntimeContext
}

var _ tool.Tool = (*StubTool)(nil)

// NewStubTool returns a tool that answers every call with out.
func NewStubTool(name string, out tool.Output) *StubTool {
	return &StubTool{name: name, output: out}
}

// NewFailingTool returns a tool whose Call always fails with err.
func NewFailingTool(name string, err error) *StubTool {
	return &StubTool{name: name, err: err}
}

// Name implements tool.Tool.
func (s *StubTool) Name() string { return s.name }

// Description implements tool.Tool.
func (s *StubTool) Description() string { return "stub " + s.name }

// Parameters implements tool.Tool. The stub accepts any arguments.
func (s *StubTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Call implements tool.Tool.
func (s *StubTool) Call(ctx context.Context, args map[string]any) (tool.Output, error) {
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.runtimes = append(s.runtimes, core.RuntimeContextFrom(ctx))
	s.mu.Unlock()

	if s.err != nil {
		return tool.Output{}, s.err
	}
	return s.output, nil
}

// Calls returns the number of calls made.
func (s *StubTool) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastRuntime returns the runtime context of the latest call.
func (s *StubTool) LastRuntime() core.RuntimeContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runtimes) == 0 {
		return nil
	}
	return s.runtimes[len(s.runtimes)-1]
}
