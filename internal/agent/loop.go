// Package agent implements the Agent Loop (spec §4.5, component C6): a
// bounded multi-turn tool-use loop driving one user turn to completion
// against an LLM that supports tool use.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/frappe/erp-coagent-gateway/internal/cost"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/model"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
	"github.com/frappe/erp-coagent-gateway/internal/tools"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
)

// Options configures a Loop.
type Options struct {
	Model         model.Client
	Registry      *tools.Registry
	Approvals     *PendingApprovals
	MaxIterations int
	Logger        telemetry.Logger
	// CostTracker, if set, accumulates token usage from every model call
	// this loop makes, for the GET /monitoring/costs endpoint.
	CostTracker *cost.Tracker
}

// Loop drives one user turn through the algorithm in spec §4.5.
type Loop struct {
	model         model.Client
	registry      *tools.Registry
	approvals     *PendingApprovals
	maxIterations int
	logger        telemetry.Logger
	costTracker   *cost.Tracker
}

// New builds a Loop.
func New(opts Options) *Loop {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Loop{
		model:         opts.Model,
		registry:      opts.Registry,
		approvals:     opts.Approvals,
		maxIterations: maxIter,
		logger:        logger,
		costTracker:   opts.CostTracker,
	}
}

// Turn captures everything one user turn needs beyond the conversation
// history: the session's tool visibility and the document state the risk
// classifier needs for the (possibly many) tool calls in this turn.
type Turn struct {
	SystemPrompt      string
	EnabledIndustries []string
	DocState          risk.DocumentState
}

// Run executes the algorithm in spec §4.5 against history (which already
// has the user's message appended by the caller) and returns the updated
// history including the assistant's replies and any tool exchanges. emitter
// is the sole destination for every frame this turn produces (spec §9
// decision 4: sinks are passed explicitly, never recovered from context).
func (l *Loop) Run(ctx context.Context, history []model.Message, turn Turn, emitter *stream.Emitter) ([]model.Message, error) {
	toolDefs := l.toolDefinitions(turn.EnabledIndustries)
	var anyCancelled bool

	for i := 1; i <= l.maxIterations; i++ {
		req := &model.Request{
			Messages: history,
			System:   turn.SystemPrompt,
			Tools:    toolDefs,
		}

		assistantMsg, toolCalls, err := l.completeTurn(ctx, req, emitter)
		if err != nil {
			return history, err
		}
		history = append(history, assistantMsg)

		if len(toolCalls) == 0 {
			if anyCancelled {
				_ = emitter.Status("cancelled")
			} else {
				_ = emitter.Status("completed")
			}
			return history, nil
		}

		results, cancelled := l.executeToolCalls(ctx, toolCalls, turn, emitter)
		if cancelled {
			anyCancelled = true
		}
		history = append(history, model.Message{Role: model.RoleUser, Parts: results})
	}

	return history, errs.ErrMaxIterationsExceeded
}

// completeTurn opens a streaming completion, forwards text deltas as message
// frames (spec §4.5 step b), and collects tool-use blocks (step c).
func (l *Loop) completeTurn(ctx context.Context, req *model.Request, emitter *stream.Emitter) (model.Message, []model.ToolUsePart, error) {
	modelStream, err := l.model.Stream(ctx, req)
	if err != nil {
		return model.Message{}, nil, fmt.Errorf("%w: model stream: %s", errs.ErrInternal, err)
	}
	defer modelStream.Close()

	var parts []model.Part
	var toolCalls []model.ToolUsePart
	for {
		chunk, err := modelStream.Recv()
		if err != nil {
			break
		}
		switch chunk.Type {
		case model.ChunkTypeText:
			if chunk.TextDelta == "" {
				continue
			}
			parts = append(parts, model.TextPart{Text: chunk.TextDelta})
			_ = emitter.Message(chunk.TextDelta)
		case model.ChunkTypeToolCall:
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
				parts = append(parts, *chunk.ToolCall)
			}
		case model.ChunkTypeUsage:
			if chunk.Usage != nil && l.costTracker != nil {
				l.costTracker.Record(req.Model, *chunk.Usage)
			}
		}
	}
	return model.Message{Role: model.RoleAssistant, Parts: parts}, toolCalls, nil
}

// toolResult pairs one tool call with its outcome, kept ordered by the
// index it was requested at so history reconstruction is deterministic
// despite concurrent execution (spec §4.5 step e).
type toolResult struct {
	call   model.ToolUsePart
	result any
	errMsg string
}

// executeToolCalls runs every tool call concurrently (spec §4.5 step e),
// gating any that require approval on the pending-resolver model, then
// emits and returns their results in request order.
func (l *Loop) executeToolCalls(ctx context.Context, calls []model.ToolUsePart, turn Turn, emitter *stream.Emitter) ([]model.Part, bool) {
	results := make([]toolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = l.executeOne(gctx, call, turn, emitter)
			return nil
		})
	}
	_ = g.Wait()

	var anyCancelled bool
	parts := make([]model.Part, 0, len(results))
	for _, r := range results {
		_ = emitter.ToolResult(r.call.ID, r.call.Name, r.result, r.errMsg)
		if r.errMsg == errs.ErrUserCancelled.Error() {
			anyCancelled = true
		}
		parts = append(parts, model.ToolResultPart{
			ToolUseID: r.call.ID,
			Content:   r.result,
			IsError:   r.errMsg != "",
		})
	}
	return parts, anyCancelled
}

func (l *Loop) executeOne(ctx context.Context, call model.ToolUsePart, turn Turn, emitter *stream.Emitter) toolResult {
	_ = emitter.ToolCall(call.ID, call.Name, decodeInput(call.Input))

	if _, err := l.registry.GetVisible(call.Name, turn.EnabledIndustries); err != nil {
		return toolResult{call: call, errMsg: err.Error()}
	}

	assessment, err := l.registry.AssessRisk(call.Name, call.Input, turn.DocState)
	if err != nil {
		return toolResult{call: call, errMsg: err.Error()}
	}

	if assessment.RequiresApproval {
		promptID, wait := l.approvals.Allocate()
		preview := RenderPreview(call.Name, decodeInput(call.Input))
		_ = emitter.UIPrompt(promptID, call.Name, preview, assessment.Level.String())

		select {
		case decision := <-wait:
			_ = emitter.UIResponse(promptID, string(decision))
			if decision != DecisionApproved {
				return toolResult{call: call, errMsg: errs.ErrUserCancelled.Error()}
			}
		case <-ctx.Done():
			l.approvals.Cancel(promptID)
			return toolResult{call: call, errMsg: ctx.Err().Error()}
		}
	}

	result, err := l.registry.Execute(ctx, call.Name, call.Input, emitter)
	if err != nil {
		return toolResult{call: call, errMsg: err.Error()}
	}
	return toolResult{call: call, result: result}
}

func (l *Loop) toolDefinitions(enabledIndustries []string) []model.ToolDefinition {
	defs := l.registry.List(enabledIndustries)
	out := make([]model.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, model.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema,
		})
	}
	return out
}

func decodeInput(raw json.RawMessage) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}
