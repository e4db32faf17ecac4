package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
)

// End is the sentinel transition target terminating a workflow (spec §4.7:
// "goto: next_node | END").
const End = "END"

// Command is a node's return value: an optional partial state update and a
// transition to the next node (spec §4.7).
type Command struct {
	Update map[string]any
	Goto   string
}

// errInterrupted is returned internally by NodeContext.Interrupt to signal
// the engine that the current node suspended on an approval gate. It never
// escapes the engine package.
var errInterrupted = errors.New("workflow: node interrupted")

// NodeContext is the read-only view and side-channel a node function
// receives for one invocation (spec §4.7 step 3: approval nodes "call
// interrupt(payload)").
type NodeContext struct {
	ctx       context.Context
	decision  any
	hasResume bool
	payload   any
	logger    telemetry.Logger
	now       func() time.Time
}

// Context returns the request-scoped Go context for this node invocation.
func (n *NodeContext) Context() context.Context { return n.ctx }

// Logger returns a logger scoped to the current workflow step.
func (n *NodeContext) Logger() telemetry.Logger { return n.logger }

// Now returns the current time for the node to use, rather than calling
// time.Now directly, so determinism holds across replay in tests.
func (n *NodeContext) Now() time.Time { return n.now() }

// Interrupt implements spec §4.7 step 3: on first execution it records
// payload and returns errInterrupted so the engine can persist a checkpoint,
// emit a ui_prompt frame, and return control to the caller. On re-entry
// after resume, it returns the injected decision instead, letting the node
// proceed past the approval gate.
func (n *NodeContext) Interrupt(payload any) (any, error) {
	if n.hasResume {
		return n.decision, nil
	}
	n.payload = payload
	return nil, errInterrupted
}

// NodeFunc is one graph node: a (mostly) pure function from state to a
// routing Command (spec §4.7).
type NodeFunc func(n *NodeContext, state map[string]any) (Command, error)

// RunNode executes node once against state with an explicit resume
// decision, rather than constructing a NodeContext inline. It is exported
// so alternate Engine realizations (internal/workflow/temporal) can drive
// the same node functions — and the same Interrupt bookkeeping — without a
// checkpoint.Store of their own. interrupted reports whether the node
// suspended on an approval gate, in which case payload holds what it
// passed to Interrupt and cmd is the zero value.
func RunNode(ctx context.Context, logger telemetry.Logger, now func() time.Time, node NodeFunc, state map[string]any, hasResume bool, decision any) (cmd Command, interrupted bool, payload any, err error) {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if now == nil {
		now = time.Now
	}
	nctx := &NodeContext{ctx: ctx, logger: logger, now: now, hasResume: hasResume, decision: decision}
	cmd, err = node(nctx, state)
	if err != nil {
		if err == errInterrupted {
			return Command{}, true, nctx.payload, nil
		}
		return Command{}, false, nil, err
	}
	return cmd, false, nil, nil
}

// Graph is a WorkflowGraph (spec §3, static): a state schema, a dispatcher
// table of nodes, an initial node, and the transitions each node is allowed
// to take (invariant 5: "no node is entered without a matching transition
// from current_node").
type Graph struct {
	Name         string
	Schema       Schema
	Nodes        map[string]NodeFunc
	InitialNode  string
	Transitions  map[string][]string
	Capabilities []string
	Tags         []string
}

// AllowsTransition reports whether from may transition to to, per the
// graph's declared edges, or to End which is always permitted.
func (g *Graph) AllowsTransition(from, to string) bool {
	if to == End {
		return true
	}
	for _, allowed := range g.Transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
