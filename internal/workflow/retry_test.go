package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflow/checkpoint"
)

func retryGraph(op workflow.Operation, maxAttempts int) *workflow.Graph {
	return &workflow.Graph{
		Name:        "retry-test",
		Schema:      workflow.Schema{},
		InitialNode: "attempt",
		Nodes: map[string]workflow.NodeFunc{
			"attempt":   workflow.RetryNode(op, maxAttempts, time.Millisecond, "done", "escalated"),
			"done":      func(n *workflow.NodeContext, s map[string]any) (workflow.Command, error) { return workflow.Command{Goto: workflow.End}, nil },
			"escalated": func(n *workflow.NodeContext, s map[string]any) (workflow.Command, error) { return workflow.Command{Goto: workflow.End}, nil },
		},
		Transitions: map[string][]string{
			"attempt": {"done", "escalated"},
		},
	}
}

func TestRetryNodeSucceedsWithoutRetryingOnFirstAttempt(t *testing.T) {
	calls := 0
	op := func(ctx context.Context, state map[string]any) (map[string]any, error) {
		calls++
		return map[string]any{"ok": true}, nil
	}
	engine := workflow.NewEngine(checkpoint.NewInMemoryStore(), nil)
	inst, err := engine.Start(context.Background(), retryGraph(op, 3), "", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, inst.Status)
	assert.Equal(t, 1, calls)
}

func TestRetryNodeRetriesThenSucceeds(t *testing.T) {
	calls := 0
	op := func(ctx context.Context, state map[string]any) (map[string]any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient failure")
		}
		return map[string]any{"ok": true}, nil
	}
	engine := workflow.NewEngine(checkpoint.NewInMemoryStore(), nil)
	inst, err := engine.Start(context.Background(), retryGraph(op, 5), "", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, inst.Status)
	assert.Equal(t, 3, calls)
}

func TestRetryNodeEscalatesAfterExhaustingAttempts(t *testing.T) {
	calls := 0
	op := func(ctx context.Context, state map[string]any) (map[string]any, error) {
		calls++
		return nil, errors.New("permanent failure")
	}
	engine := workflow.NewEngine(checkpoint.NewInMemoryStore(), nil)
	inst, err := engine.Start(context.Background(), retryGraph(op, 2), "", map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, inst.Status)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "escalated", inst.History[0].Outcome)
	assert.Equal(t, "permanent failure", inst.State["retry_error"])
}
