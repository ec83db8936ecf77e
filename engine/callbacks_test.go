package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/secretary/core"
	"github.com/hupe1980/secretary/tool"
)

func TestCallbackManager_StopsAtFirstError(t *testing.T) {
	cm := NewCallbackManager()

	var order []int
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeModel, func(context.Context, *CallbackContext) error {
		order = append(order, 1)
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeModel, func(context.Context, *CallbackContext) error {
		order = append(order, 2)
		return nil
	}))

	cc := &CallbackContext{}
	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeModel, cc)
	assert.EqualError(t, err, "stop")
	assert.Equal(t, []int{1}, order)
	assert.Equal(t, CallbackBeforeModel, cc.CallbackType)

	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackAfterModel, cc))
}

func TestLoggingCallback(t *testing.T) {
	var lines []string
	cb := NewLoggingCallback(CallbackOnTransition, func(m string) { lines = append(lines, m) })

	require.NoError(t, cb.Execute(context.Background(), &CallbackContext{
		ThreadID: "t1", TurnID: "turn", From: StateAgent, To: StateTools,
	}))
	require.Len(t, lines, 1)
	assert.Equal(t, "[on_transition] thread=t1 turn=turn agent -> tools", lines[0])

	assert.NoError(t, NewLoggingCallback(CallbackOnError, nil).Execute(context.Background(), &CallbackContext{}))
}

func TestArtifactValidationCallback(t *testing.T) {
	cb := NewArtifactValidationCallback(func(a core.Artifact) error {
		if _, ok := a["count"]; !ok {
			return errors.New("count missing")
		}
		return nil
	})
	assert.Equal(t, CallbackAfterTool, cb.Type())

	ok := tool.Result{Artifact: core.Artifact{"count": 1}}
	assert.NoError(t, cb.Execute(context.Background(), &CallbackContext{Result: &ok}))

	missing := tool.Result{Artifact: core.Artifact{}}
	assert.Error(t, cb.Execute(context.Background(), &CallbackContext{Result: &missing}))

	failed := tool.Result{Annotated: true}
	assert.NoError(t, cb.Execute(context.Background(), &CallbackContext{Result: &failed}))
}

func TestParsePolicies(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("chaotic")
	assert.Error(t, err)

	r, err := ParseRollbackPolicy("retry")
	require.NoError(t, err)
	assert.Equal(t, RollbackRetry, r)

	a, err := ParseAdmission("reject")
	require.NoError(t, err)
	assert.Equal(t, AdmissionReject, a)

	assert.Equal(t, "post_tool", StatePostTool.String())
}
