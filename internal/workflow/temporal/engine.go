package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Engine is a thin client-side wrapper starting and resuming GraphWorkflow
// runs — the Temporal-backed drop-in alternative to internal/workflow.Engine
// for deployments that want workflow state to survive process restarts via
// Temporal's own durable execution instead of a Redis checkpoint.Store.
type Engine struct {
	Client    client.Client
	TaskQueue string
}

// NewEngine builds an Engine against an already-connected Temporal client.
func NewEngine(c client.Client, taskQueue string) *Engine {
	return &Engine{Client: c, TaskQueue: taskQueue}
}

// workflowID is deterministic per thread so Resume can target a run by
// thread_id alone, without a separate thread_id -> workflow_id index.
func workflowID(threadID string) string { return "graph:" + threadID }

// Start launches a new GraphWorkflow run for threadID (allocated by the
// caller, matching spec §4.7 step 1's "allocate thread_id if absent").
func (e *Engine) Start(ctx context.Context, graphName, threadID, initialNode string, initialState map[string]any) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{ID: workflowID(threadID), TaskQueue: e.TaskQueue}
	run, err := e.Client.ExecuteWorkflow(ctx, opts, GraphWorkflow, GraphWorkflowRequest{
		GraphName:    graphName,
		ThreadID:     threadID,
		InitialNode:  initialNode,
		InitialState: initialState,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal: start graph %s thread %s: %w", graphName, threadID, err)
	}
	return run, nil
}

// Resume delivers a decision to a run parked on ResumeSignal (spec §4.7
// step 3's resume path). Unlike internal/workflow.Engine.Resume, no
// checkpoint is read here: Temporal redelivers the signal to the run's
// current worker regardless of which process receives the resume call.
func (e *Engine) Resume(ctx context.Context, threadID string, decision any) error {
	if err := e.Client.SignalWorkflow(ctx, workflowID(threadID), "", ResumeSignal, decision); err != nil {
		return fmt.Errorf("temporal: signal resume for thread %s: %w", threadID, err)
	}
	return nil
}

// Register wires GraphWorkflow and activities onto w — the call an
// operator's worker process makes at startup to opt into this engine.
func Register(w worker.Worker, activities *NodeActivities) {
	w.RegisterWorkflow(GraphWorkflow)
	w.RegisterActivity(activities.RunNode)
}
