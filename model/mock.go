package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/secretary/core"
)

// MockModel is a scripted in-memory Model useful for tests, examples and the
// CLI's offline mode. Responses are consumed in order; once the script is
// exhausted the last response repeats when RepeatLast is set, otherwise the
// model echoes the last user message.
type MockModel struct {
	mu         sync.Mutex
	info       Info
	script     []Response
	errs       []error
	next       int
	repeatLast bool
	requests   []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
	}
}

// AddResponse appends a scripted response.
func (m *MockModel) AddResponse(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
	m.errs = append(m.errs, nil)
	return m
}

// AddError appends a scripted failure.
func (m *MockModel) AddError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, Response{})
	m.errs = append(m.errs, err)
	return m
}

// RepeatLast keeps returning the final scripted response once the script ends.
func (m *MockModel) RepeatLast() *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeatLast = true
	return m
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, cloneRequest(req))

	idx := m.next
	replay := false
	switch {
	case idx < len(m.script):
		m.next++
	case m.repeatLast && len(m.script) > 0:
		idx = len(m.script) - 1
		replay = true
	default:
		last, ok := core.LastMessage(req.Messages, core.RoleUser)
		if !ok {
			return Response{}, fmt.Errorf("no user message provided")
		}
		return NewAnswer("Mock response to: " + last.Content), nil
	}

	if err := m.errs[idx]; err != nil {
		return Response{}, err
	}
	return fresh(m.script[idx], replay), nil
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// fresh gives a scripted response a new message id. A replayed response also
// gets new tool call ids so stored history never repeats a tool_call_id.
func fresh(r Response, replay bool) Response {
	msg := r.Message.Clone()
	msg.ID = core.NewID()
	if replay {
		for i := range msg.ToolCalls {
			msg.ToolCalls[i].ID = "call_" + core.NewID()
		}
	}
	r.Message = msg
	return r
}

func cloneRequest(req Request) Request {
	req.Messages = core.CloneMessages(req.Messages)
	req.Tools = append([]ToolDefinition(nil), req.Tools...)
	return req
}
