package temporal

import (
	"fmt"
	"time"

	tmprl "go.temporal.io/sdk/workflow"

	core "github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflowregistry"
)

// ResumeSignal is the Temporal signal name an operator sends to resume an
// interrupted node (spec §4.7 step 3's resume path, realized here as a
// signal rather than a checkpoint-store resume call).
const ResumeSignal = "workflow.resume"

// GraphWorkflowRequest starts a graph-driven Temporal workflow; it mirrors
// internal/workflow.Engine.Start's parameters.
type GraphWorkflowRequest struct {
	GraphName    string
	ThreadID     string
	InitialNode  string
	InitialState map[string]any
}

var graphRegistry *workflowregistry.Registry

// SetRegistry wires the process-wide workflow registry (spec §9: "in-memory
// singletons... loaded once at startup") so GraphWorkflow can resolve each
// graph's state schema for reducer-aware merging (append vs. replace,
// per internal/workflow.Schema.Merge). Call once, before registering
// GraphWorkflow with a Temporal worker — node dispatch itself goes through
// NodeActivities.Registry, set independently on the worker side.
func SetRegistry(r *workflowregistry.Registry) { graphRegistry = r }

// GraphWorkflow drives one graph instance to completion or indefinite
// interruption. Unlike internal/workflow.Engine, it writes no
// checkpoint.Store entries: the Temporal service's event history is the
// durable record, and a signal wait — not a re-entrant activity call — is
// what survives a worker restart while interrupted.
func GraphWorkflow(ctx tmprl.Context, req GraphWorkflowRequest) (*core.Instance, error) {
	ctx = tmprl.WithActivityOptions(ctx, tmprl.ActivityOptions{StartToCloseTimeout: 30 * time.Second})

	if graphRegistry == nil {
		return nil, fmt.Errorf("temporal: GraphWorkflow: SetRegistry was never called")
	}
	g, _, ok := graphRegistry.Get(req.GraphName)
	if !ok {
		return nil, fmt.Errorf("temporal: unknown graph %q", req.GraphName)
	}

	inst := &core.Instance{
		GraphName:   req.GraphName,
		ThreadID:    req.ThreadID,
		CurrentNode: req.InitialNode,
		Status:      core.StatusRunning,
	}
	state, err := g.Schema.ValidateAndFill(req.InitialState)
	if err != nil {
		return inst, fmt.Errorf("temporal: %w", err)
	}
	inst.State = state

	var activities *NodeActivities // nil receiver: only its method value's name is used for dispatch.
	nodeName := req.InitialNode
	var resumeDecision any
	hasResume := false

	for {
		var result RunNodeResult
		future := tmprl.ExecuteActivity(ctx, activities.RunNode, RunNodeRequest{
			GraphName: req.GraphName,
			NodeName:  nodeName,
			State:     inst.State,
			HasResume: hasResume,
			Decision:  resumeDecision,
		})
		if err := future.Get(ctx, &result); err != nil {
			inst.Status = core.StatusFailed
			return inst, err
		}
		hasResume = false

		if result.Interrupted {
			inst.Status = core.StatusInterrupted
			inst.CurrentNode = nodeName
			inst.InterruptPayload = result.Payload

			var decision any
			tmprl.GetSignalChannel(ctx, ResumeSignal).Receive(ctx, &decision)

			inst.Status = core.StatusRunning
			resumeDecision = decision
			hasResume = true
			continue
		}

		inst.State = g.Schema.Merge(inst.State, result.Update)
		inst.History = append(inst.History, core.HistoryEntry{Node: nodeName, Timestamp: tmprl.Now(ctx), Outcome: result.Goto})

		if result.Goto != core.End && !g.AllowsTransition(nodeName, result.Goto) {
			inst.Status = core.StatusFailed
			return inst, fmt.Errorf("temporal: node %s has no transition to %s", nodeName, result.Goto)
		}

		if result.Goto == core.End {
			inst.Status = core.StatusCompleted
			inst.CurrentNode = core.End
			return inst, nil
		}
		nodeName = result.Goto
		inst.CurrentNode = nodeName
	}
}
