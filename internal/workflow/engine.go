package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frappe/erp-coagent-gateway/internal/decision"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
	"github.com/frappe/erp-coagent-gateway/internal/workflow/checkpoint"
)

// Engine is the Workflow Engine (spec §4.7, component C8): it drives a
// Graph's nodes to completion or interruption, persisting a checkpoint
// after every step. The in-memory default (checkpoint.InMemoryStore) and
// the Redis-backed alternate (checkpoint.RedisStore) satisfy the same
// Store interface, so swapping the backing store requires no change here.
type Engine struct {
	store  checkpoint.Store
	logger telemetry.Logger
	now    func() time.Time
}

// NewEngine builds an Engine backed by store. A nil logger defaults to a
// noop implementation.
func NewEngine(store checkpoint.Store, logger telemetry.Logger) *Engine {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Start implements spec §4.7 step 1: allocates thread_id if absent, loads
// the latest checkpoint if one exists for an explicitly supplied thread_id,
// else initializes state from the graph's schema defaults plus the
// caller's initial state, then runs the step loop from the graph's initial
// node.
func (e *Engine) Start(ctx context.Context, g *Graph, threadID string, initialState map[string]any, emitter *stream.Emitter) (*Instance, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}

	inst := &Instance{
		InstanceID:  uuid.NewString(),
		GraphName:   g.Name,
		ThreadID:    threadID,
		CurrentNode: g.InitialNode,
		Status:      StatusRunning,
	}

	if cp, ok, err := e.store.Latest(ctx, threadID); err != nil {
		return nil, fmt.Errorf("%w: load checkpoint: %s", errs.ErrInternal, err)
	} else if ok {
		var state map[string]any
		if err := json.Unmarshal(cp.State, &state); err != nil {
			return nil, fmt.Errorf("%w: decode checkpoint state: %s", errs.ErrInternal, err)
		}
		inst.State = state
		inst.CurrentNode = cp.Node
	} else {
		state, err := g.Schema.ValidateAndFill(initialState)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
		}
		inst.State = state
		if err := e.persist(ctx, inst, g.InitialNode, false); err != nil {
			return nil, err
		}
	}

	return e.runLoop(ctx, g, inst, nil, false, emitter)
}

// Resume implements spec §4.7 step 3's resume path: restores the latest
// checkpoint for threadID, re-enters the same node with decision injected
// so the node's Interrupt call returns it instead of suspending again, and
// continues the step loop.
func (e *Engine) Resume(ctx context.Context, g *Graph, threadID string, decision any, emitter *stream.Emitter) (*Instance, error) {
	cp, ok, err := e.store.Latest(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: load checkpoint: %s", errs.ErrInternal, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no checkpoint for thread %s", errs.ErrInvalidInput, threadID)
	}
	if cp.Status != string(StatusInterrupted) {
		return nil, fmt.Errorf("%w: thread %s is not interrupted", errs.ErrInvalidInput, threadID)
	}

	var state map[string]any
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, fmt.Errorf("%w: decode checkpoint state: %s", errs.ErrInternal, err)
	}

	inst := &Instance{
		InstanceID:  uuid.NewString(),
		GraphName:   g.Name,
		ThreadID:    threadID,
		CurrentNode: cp.Node,
		State:       state,
		Status:      StatusRunning,
	}
	return e.runLoop(ctx, g, inst, decision, true, emitter)
}

// NormalizeDecision maps the wire decision encoding (spec §4.7 step 3:
// "decision == true || decision == \"APPROVED\"") onto a boolean approval.
// Delegates to decision.Normalize, the single implementation shared with the
// HTTP boundary (spec §9 decision 5), so a node re-normalizing an
// already-resolved bool (the common case on resume) is a no-op.
func NormalizeDecision(d any) bool {
	return decision.Normalize(d)
}

func (e *Engine) runLoop(ctx context.Context, g *Graph, inst *Instance, resumeDecision any, isResume bool, emitter *stream.Emitter) (*Instance, error) {
	nodeName := inst.CurrentNode
	firstIteration := true
	for {
		node, ok := g.Nodes[nodeName]
		if !ok {
			inst.Status = StatusFailed
			return inst, fmt.Errorf("%w: unknown node %q in graph %s", errs.ErrInternal, nodeName, g.Name)
		}

		hasResume := isResume && firstIteration
		firstIteration = false

		cmd, interrupted, payload, err := RunNode(ctx, e.logger, e.now, node, inst.State, hasResume, resumeDecision)
		if err != nil {
			inst.Status = StatusFailed
			return inst, fmt.Errorf("%w: node %s: %s", errs.ErrInternal, nodeName, err)
		}
		if interrupted {
			inst.Status = StatusInterrupted
			inst.CurrentNode = nodeName
			inst.InterruptPayload = payload
			if perr := e.persist(ctx, inst, nodeName, true); perr != nil {
				return inst, perr
			}
			if emitter != nil {
				preview, _ := json.Marshal(payload)
				_ = emitter.UIPrompt(inst.ThreadID, nodeName, string(preview), "")
			}
			return inst, nil
		}

		inst.State = g.Schema.Merge(inst.State, cmd.Update)
		inst.History = append(inst.History, HistoryEntry{Node: nodeName, Timestamp: e.now(), Outcome: cmd.Goto})

		if cmd.Goto != End && !g.AllowsTransition(nodeName, cmd.Goto) {
			inst.Status = StatusFailed
			return inst, fmt.Errorf("%w: node %s has no transition to %s", errs.ErrInternal, nodeName, cmd.Goto)
		}

		if emitter != nil {
			_ = emitter.Status(fmt.Sprintf("%s:completed", nodeName))
		}

		if cmd.Goto == End {
			inst.Status = StatusCompleted
			inst.CurrentNode = End
			if err := e.persist(ctx, inst, End, false); err != nil {
				return inst, err
			}
			if emitter != nil {
				_ = emitter.Status("completed")
			}
			return inst, nil
		}

		if err := e.persist(ctx, inst, cmd.Goto, false); err != nil {
			return inst, err
		}
		nodeName = cmd.Goto
		inst.CurrentNode = nodeName
		// Only the very first node of a resumed run observes the injected
		// decision; subsequent nodes this loop visits run fresh.
		isResume = false
	}
}

func (e *Engine) persist(ctx context.Context, inst *Instance, node string, interrupted bool) error {
	stateJSON, err := json.Marshal(inst.State)
	if err != nil {
		return fmt.Errorf("%w: marshal state: %s", errs.ErrInternal, err)
	}
	parent, ok, err := e.store.Latest(ctx, inst.ThreadID)
	if err != nil {
		return fmt.Errorf("%w: load parent checkpoint: %s", errs.ErrInternal, err)
	}
	parentID := ""
	if ok {
		parentID = parent.ID
	}
	status := string(StatusRunning)
	switch {
	case interrupted:
		status = string(StatusInterrupted)
	case node == End:
		status = string(StatusCompleted)
	}
	cp := checkpoint.Checkpoint{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		ThreadID:  inst.ThreadID,
		Node:      node,
		Status:    status,
		State:     stateJSON,
		Metadata:  map[string]any{"graph_name": inst.GraphName},
		CreatedAt: e.now(),
	}
	if err := e.store.Append(ctx, cp); err != nil {
		return fmt.Errorf("%w: append checkpoint: %s", errs.ErrInternal, err)
	}
	return nil
}

// GraphNameForThread looks up the graph a thread_id belongs to from its
// latest checkpoint's metadata, so an HTTP resume request that only carries
// thread_id (spec §6.1: "{session_id, prompt_id | thread_id, decision}", no
// graph_name) can resolve which graph to resume against.
func (e *Engine) GraphNameForThread(ctx context.Context, threadID string) (string, error) {
	cp, ok, err := e.store.Latest(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("%w: load checkpoint: %s", errs.ErrInternal, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: no checkpoint for thread %s", errs.ErrInvalidInput, threadID)
	}
	name, _ := cp.Metadata["graph_name"].(string)
	if name == "" {
		return "", fmt.Errorf("%w: checkpoint for thread %s has no graph_name", errs.ErrInternal, threadID)
	}
	return name, nil
}
