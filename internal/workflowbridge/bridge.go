// Package workflowbridge implements the Workflow Bridge (spec §4.9,
// component C10): a tool named execute_workflow_graph exposed to the agent
// loop that looks up a named graph in the Workflow Registry, validates the
// caller's initial state against its schema, and starts a WorkflowInstance
// bound to the same SSE emitter the agent loop is already streaming through
// (spec §9: "requires that the workflow engine and the agent loop share the
// same emitter instance").
package workflowbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/tools"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
	"github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflowregistry"
)

// ToolName is the name this bridge registers under (spec §4.9).
const ToolName = "execute_workflow_graph"

// Input is the execute_workflow_graph tool's input (spec §4.9: "{graph_name,
// initial_state}").
type Input struct {
	GraphName    string         `json:"graph_name"`
	InitialState map[string]any `json:"initial_state"`
}

// Result summarizes the started (or immediately interrupted) instance back
// to the agent loop as the tool_result payload (spec §4.9: "returns a
// result summary").
type Result struct {
	InstanceID  string `json:"instance_id"`
	ThreadID    string `json:"thread_id"`
	GraphName   string `json:"graph_name"`
	Status      string `json:"status"`
	CurrentNode string `json:"current_node"`
}

// schema is the JSON Schema validating Input (spec §9 decision 2: the tool
// registry's schema is the single source of truth).
var schema = map[string]any{
	"type":     "object",
	"required": []string{"graph_name"},
	"properties": map[string]any{
		"graph_name":    map[string]any{"type": "string"},
		"initial_state": map[string]any{"type": "object"},
	},
}

// Definition builds the execute_workflow_graph tools.Definition, backed by
// registry for graph lookup/validation and engine for execution.
func Definition(registry *workflowregistry.Registry, engine *workflow.Engine) tools.Definition {
	return tools.Definition{
		Name: ToolName,
		Description: "Invoke a named deterministic workflow graph (check-in/billing, " +
			"order-to-cash, and similar multi-step business processes) and stream its " +
			"progress, including any approval gates, into this conversation.",
		Industry: tools.CommonIndustry,
		// A workflow graph can itself contain writes and approval gates; the
		// bridge call is conservatively classified as a write-class operation
		// so its own invocation surfaces in risk assessment, while the
		// graph's own nodes carry their own approval gates independently.
		OperationKind: risk.OpUpdate,
		Schema:        schema,
		Handler: func(ctx context.Context, raw json.RawMessage, emitter *stream.Emitter) (any, error) {
			var in Input
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			if in.GraphName == "" {
				return nil, fmt.Errorf("%w: graph_name is required", errs.ErrInvalidInput)
			}

			g, _, ok := registry.Get(in.GraphName)
			if !ok {
				return nil, fmt.Errorf("%w: unknown workflow graph %q", errs.ErrInvalidInput, in.GraphName)
			}
			state, err := registry.ValidateState(in.GraphName, in.InitialState)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}

			inst, err := engine.Start(ctx, g, "", state, emitter)
			if err != nil {
				return nil, err
			}
			return Result{
				InstanceID:  inst.InstanceID,
				ThreadID:    inst.ThreadID,
				GraphName:   in.GraphName,
				Status:      string(inst.Status),
				CurrentNode: inst.CurrentNode,
			}, nil
		},
	}
}
