// Package temporal provides an alternative Workflow Engine realization
// (spec §4.7, component C8) backed by go.temporal.io/sdk. Unlike
// internal/workflow.Engine, which persists checkpoints in a
// checkpoint.Store and resumes a node by re-entering it from a restored
// checkpoint, this engine leans on Temporal's own durable execution: a
// GraphWorkflow run's event history is the checkpoint chain, and a
// suspended approval node resumes when a Temporal signal arrives rather
// than when checkpoint.Store.Latest is re-read.
//
// It is not wired into cmd/gateway's default binary — the in-memory/Redis
// checkpoint.Store engine is the default per SPEC_FULL.md's framing of
// durable cross-restart state as optional — but it is a complete, testable
// second implementation an operator can opt into by running a Temporal
// worker alongside the gateway.
package temporal

import (
	"context"
	"fmt"

	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
	core "github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflowregistry"
)

// RunNodeRequest is one node-execution activity call.
type RunNodeRequest struct {
	GraphName string
	NodeName  string
	State     map[string]any
	HasResume bool
	Decision  any
}

// RunNodeResult is a node's outcome flattened to a plain struct, since
// activity results are serialized across the Temporal wire boundary and
// core.Command's map[string]any survives that fine but the richer
// core.NodeContext machinery does not.
type RunNodeResult struct {
	Interrupted bool
	Payload     any
	Update      map[string]any
	Goto        string
}

// NodeActivities binds the process-wide workflow registry's compiled
// graphs to Temporal activities, since graph nodes are Go closures that
// cannot themselves cross the workflow/activity boundary (spec §9,
// "dynamic dispatch by node name: use a static table keyed by name, not
// reflection").
type NodeActivities struct {
	Registry *workflowregistry.Registry
	Logger   telemetry.Logger
}

// RunNode is the Temporal activity executing a single graph node. It
// delegates to core.RunNode so an approval node's Interrupt semantics are
// identical to the checkpoint.Store engine's — the only difference is what
// happens with an interrupted result once it crosses back into the
// workflow function (see GraphWorkflow).
func (a *NodeActivities) RunNode(ctx context.Context, req RunNodeRequest) (RunNodeResult, error) {
	g, _, ok := a.Registry.Get(req.GraphName)
	if !ok {
		return RunNodeResult{}, fmt.Errorf("temporal: unknown graph %q", req.GraphName)
	}
	node, ok := g.Nodes[req.NodeName]
	if !ok {
		return RunNodeResult{}, fmt.Errorf("temporal: graph %s has no node %q", req.GraphName, req.NodeName)
	}
	cmd, interrupted, payload, err := core.RunNode(ctx, a.Logger, nil, node, req.State, req.HasResume, req.Decision)
	if err != nil {
		return RunNodeResult{}, err
	}
	if interrupted {
		return RunNodeResult{Interrupted: true, Payload: payload}, nil
	}
	return RunNodeResult{Update: cmd.Update, Goto: cmd.Goto}, nil
}
