package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/secretary/core"
)

func TestFromMessage_TagsByToolCalls(t *testing.T) {
	answer := FromMessage(core.NewAssistantMessage("hi"), "stop")
	assert.Equal(t, KindAnswer, answer.Kind)

	msg := core.NewAssistantMessage("")
	msg.ToolCalls = []core.ToolCall{{ID: "1", Name: "list-events"}}
	calls := FromMessage(msg, "tool_calls")
	assert.Equal(t, KindToolCalls, calls.Kind)
	assert.Equal(t, "tool_calls", calls.Kind.String())
}

func TestNewToolCalls_AssignsIDs(t *testing.T) {
	resp := NewToolCalls("", core.ToolCall{Name: "list-events"})
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.NotEmpty(t, resp.Message.ToolCalls[0].ID)
	assert.Equal(t, core.RoleAssistant, resp.Message.Role)
}

func TestMockModel_Script(t *testing.T) {
	ctx := context.Background()
	m := NewMockModel("mock").
		AddResponse(NewToolCalls("", core.ToolCall{Name: "list-events"})).
		AddError(errors.New("overloaded")).
		AddResponse(NewAnswer("done"))

	req := Request{Messages: []core.Message{core.NewUserMessage("hello")}}

	r, err := m.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, KindToolCalls, r.Kind)

	_, err = m.Generate(ctx, req)
	assert.EqualError(t, err, "overloaded")

	r, err = m.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "done", r.Message.Content)

	r, err = m.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", r.Message.Content)

	assert.Equal(t, 4, m.Calls())
	assert.Len(t, m.Requests(), 4)
}

func TestMockModel_RepeatLast(t *testing.T) {
	m := NewMockModel("loop").
		AddResponse(NewToolCalls("", core.ToolCall{ID: "c", Name: "again"})).
		RepeatLast()

	req := Request{Messages: []core.Message{core.NewUserMessage("go")}}
	first, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	third, err := m.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, KindToolCalls, second.Kind)
	assert.NotEqual(t, first.Message.ID, second.Message.ID)

	assert.Equal(t, "c", first.Message.ToolCalls[0].ID)
	ids := map[string]bool{}
	for _, r := range []Response{first, second, third} {
		require.Len(t, r.Message.ToolCalls, 1)
		assert.Equal(t, "again", r.Message.ToolCalls[0].Name)
		ids[r.Message.ToolCalls[0].ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestMockModel_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockModel("m").Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
