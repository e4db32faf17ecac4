package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/model"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/tools"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
)

type queueStreamer struct {
	chunks []model.Chunk
	pos    int
}

func (s *queueStreamer) Recv() (model.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}
func (s *queueStreamer) Close() error { return nil }

// sequencedClient returns one queued Streamer per Stream call, so a test can
// script a multi-iteration agent loop turn by turn.
type sequencedClient struct {
	mu      sync.Mutex
	streams [][]model.Chunk
	calls   int
}

func (c *sequencedClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return nil, nil
}

func (c *sequencedClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunks := c.streams[c.calls]
	c.calls++
	return &queueStreamer{chunks: chunks}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	frames []stream.Frame
}

func (s *recordingSink) Emit(f stream.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}
func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) framesOfType(t stream.FrameType) []stream.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stream.Frame
	for _, f := range s.frames {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func newApprovalRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(risk.NewClassifier(risk.DefaultThresholds()))
	require.NoError(t, r.Register(tools.Definition{
		Name:          "create_doc",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpCreate,
		Schema:        map[string]any{"type": "object"},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			return map[string]any{"name": "NEW-1"}, nil
		},
	}))
	require.NoError(t, r.Register(tools.Definition{
		Name:          "search",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpRead,
		Schema:        map[string]any{"type": "object"},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			return map[string]any{"rows": []any{}}, nil
		},
	}))
	return r
}

func toolCallChunk(id, name, input string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolUsePart{ID: id, Name: name, Input: json.RawMessage(input)}}
}

func textChunk(text string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeText, TextDelta: text}
}

func TestRunCompletesWhenModelReturnsNoToolCalls(t *testing.T) {
	client := &sequencedClient{streams: [][]model.Chunk{{textChunk("hello there")}}}
	loop := agent.New(agent.Options{Model: client, Registry: newApprovalRegistry(t), Approvals: agent.NewPendingApprovals()})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-1")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}}}
	out, err := loop.Run(context.Background(), history, agent.Turn{EnabledIndustries: []string{"common"}}, emitter)
	require.NoError(t, err)
	require.Len(t, out, 2)

	statuses := sink.framesOfType(stream.FrameStatus)
	require.Len(t, statuses, 1)
	assert.Equal(t, "completed", statuses[0].Data.(stream.StatusData).Status)
}

func TestRunReadOnlyToolCallNeedsNoApproval(t *testing.T) {
	client := &sequencedClient{streams: [][]model.Chunk{
		{toolCallChunk("call-1", "search", `{"doctype":"Room"}`)},
		{textChunk("found some rooms")},
	}}
	loop := agent.New(agent.Options{Model: client, Registry: newApprovalRegistry(t), Approvals: agent.NewPendingApprovals()})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-2")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "find rooms"}}}}
	out, err := loop.Run(context.Background(), history, agent.Turn{EnabledIndustries: []string{"common"}}, emitter)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Empty(t, sink.framesOfType(stream.FrameUIPrompt))

	results := sink.framesOfType(stream.FrameToolResult)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Data.(stream.ToolResultData).Error)
}

func TestRunApprovedCreateDocExecutes(t *testing.T) {
	client := &sequencedClient{streams: [][]model.Chunk{
		{toolCallChunk("call-1", "create_doc", `{"doctype":"Reservation","data":{}}`)},
		{textChunk("created it")},
	}}
	approvals := agent.NewPendingApprovals()
	loop := agent.New(agent.Options{Model: client, Registry: newApprovalRegistry(t), Approvals: approvals})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-3")

	go resolveFirstPrompt(t, sink, approvals, agent.DecisionApproved)

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "create a reservation"}}}}
	out, err := loop.Run(context.Background(), history, agent.Turn{EnabledIndustries: []string{"common"}}, emitter)
	require.NoError(t, err)
	require.Len(t, out, 4)

	results := sink.framesOfType(stream.FrameToolResult)
	require.Len(t, results, 1)
	rd := results[0].Data.(stream.ToolResultData)
	assert.Empty(t, rd.Error)
	assert.Equal(t, "NEW-1", rd.Result.(map[string]any)["name"])
}

func TestRunDeniedCreateDocRecordsCancelledStatus(t *testing.T) {
	client := &sequencedClient{streams: [][]model.Chunk{
		{toolCallChunk("call-1", "create_doc", `{"doctype":"Reservation","data":{}}`)},
		{textChunk("ok, not creating it")},
	}}
	approvals := agent.NewPendingApprovals()
	loop := agent.New(agent.Options{Model: client, Registry: newApprovalRegistry(t), Approvals: approvals})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-4")

	go resolveFirstPrompt(t, sink, approvals, agent.DecisionDenied)

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "create a reservation"}}}}
	out, err := loop.Run(context.Background(), history, agent.Turn{EnabledIndustries: []string{"common"}}, emitter)
	require.NoError(t, err)
	require.Len(t, out, 4)

	results := sink.framesOfType(stream.FrameToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, errs.ErrUserCancelled.Error(), results[0].Data.(stream.ToolResultData).Error)

	statuses := sink.framesOfType(stream.FrameStatus)
	require.Len(t, statuses, 1)
	assert.Equal(t, "cancelled", statuses[0].Data.(stream.StatusData).Status)
}

func TestRunMaxIterationsExceeded(t *testing.T) {
	streams := make([][]model.Chunk, 3)
	for i := range streams {
		streams[i] = []model.Chunk{toolCallChunk("call", "search", `{"doctype":"Room"}`)}
	}
	client := &sequencedClient{streams: streams}
	loop := agent.New(agent.Options{Model: client, Registry: newApprovalRegistry(t), Approvals: agent.NewPendingApprovals(), MaxIterations: 3})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-5")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "loop forever"}}}}
	_, err := loop.Run(context.Background(), history, agent.Turn{EnabledIndustries: []string{"common"}}, emitter)
	assert.ErrorIs(t, err, errs.ErrMaxIterationsExceeded)
}

// resolveFirstPrompt polls sink until a ui_prompt frame appears, then
// resolves it with decision. Tests call this in a goroutine since Run blocks
// on the approval channel synchronously.
func resolveFirstPrompt(t *testing.T, sink *recordingSink, approvals *agent.PendingApprovals, decision agent.Decision) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		prompts := sink.framesOfType(stream.FrameUIPrompt)
		if len(prompts) > 0 {
			pd := prompts[0].Data.(stream.UIPromptData)
			_ = approvals.Resolve(pd.PromptID, decision)
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Error("timed out waiting for ui_prompt frame")
}
