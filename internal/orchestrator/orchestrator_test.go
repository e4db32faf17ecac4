package orchestrator_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/model"
	"github.com/frappe/erp-coagent-gateway/internal/orchestrator"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/tools"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
)

// fakeStreamer replays a fixed sequence of chunks, each representing one
// assistant reply with no tool calls, so the agent loop completes in a
// single iteration.
type fakeStreamer struct {
	chunks []model.Chunk
	pos    int
}

func (s *fakeStreamer) Recv() (model.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *fakeStreamer) Close() error { return nil }

func textStreamer(text string) *fakeStreamer {
	return &fakeStreamer{chunks: []model.Chunk{{Type: model.ChunkTypeText, TextDelta: text}}}
}

// fakeClient answers Complete calls from a queue (used for classification
// and synthesis prompts) and Stream calls with a single canned reply (used
// by the agent loop sub-agents invoke).
type fakeClient struct {
	mu          sync.Mutex
	completions []string
	streamText  string
}

func (f *fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text := f.completions[0]
	f.completions = f.completions[1:]
	return &model.Response{
		Content: []model.Message{{Role: model.RoleAssistant, Parts: []model.Part{model.TextPart{Text: text}}}},
	}, nil
}

func (f *fakeClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return textStreamer(f.streamText), nil
}

func newTestLoop(client model.Client) *agent.Loop {
	registry := tools.NewRegistry(risk.NewClassifier(risk.DefaultThresholds()))
	return agent.New(agent.Options{
		Model:     client,
		Registry:  registry,
		Approvals: agent.NewPendingApprovals(),
	})
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

func baseTurn() agent.Turn {
	return agent.Turn{SystemPrompt: "default assistant", EnabledIndustries: []string{"common"}}
}

func TestClassify(t *testing.T) {
	client := &fakeClient{completions: []string{
		`{"industry":"hotel","complexity":"low","routing_decision":"direct","requires_subagents":[],"confidence":0.9}`,
	}}
	o := orchestrator.New(orchestrator.Options{Classifier: client})

	c, err := o.Classify(context.Background(), "List rooms for 2 guests tonight")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.RouteDirect, c.RoutingDecision)
	assert.Equal(t, "hotel", c.Industry)
	assert.InDelta(t, 0.9, c.Confidence, 0.001)
}

func TestRouteDirectFallsBackToDefaultLoop(t *testing.T) {
	client := &fakeClient{
		completions: []string{`{"routing_decision":"direct"}`},
		streamText:  "here are the available rooms",
	}
	loop := newTestLoop(client)
	o := orchestrator.New(orchestrator.Options{Classifier: client, DefaultLoop: loop})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-1")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "rooms?"}}}}
	out, err := o.Route(context.Background(), history, baseTurn(), emitter)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.RoleAssistant, out[1].Role)
}

func TestRouteDelegateUsesSubAgentPrompt(t *testing.T) {
	client := &fakeClient{
		completions: []string{`{"routing_decision":"delegate","requires_subagents":["hotel"]}`},
		streamText:  "delegated reply",
	}
	loop := newTestLoop(client)
	subAgents := map[string]orchestrator.SubAgent{
		"hotel": {Name: "hotel", SystemPrompt: "hotel specialist prompt", Tools: []string{"hotel"}},
	}
	o := orchestrator.New(orchestrator.Options{Classifier: client, DefaultLoop: loop, SubAgents: subAgents})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-2")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "book a room"}}}}
	out, err := o.Route(context.Background(), history, baseTurn(), emitter)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestRouteMultiIndustrySynthesizes(t *testing.T) {
	client := &fakeClient{
		completions: []string{
			`{"routing_decision":"multi_industry","requires_subagents":["hotel","manufacturing"]}`,
			"synthesized answer combining both",
		},
		streamText: "sub-agent finding",
	}
	loop := newTestLoop(client)
	subAgents := map[string]orchestrator.SubAgent{
		"hotel":         {Name: "hotel", SystemPrompt: "hotel prompt"},
		"manufacturing": {Name: "manufacturing", SystemPrompt: "manufacturing prompt"},
	}
	o := orchestrator.New(orchestrator.Options{Classifier: client, DefaultLoop: loop, SubAgents: subAgents})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-3")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "cross-industry question"}}}}
	out, err := o.Route(context.Background(), history, baseTurn(), emitter)
	require.NoError(t, err)
	last := out[len(out)-1]
	require.Len(t, last.Parts, 1)
	tp, ok := last.Parts[0].(model.TextPart)
	require.True(t, ok)
	assert.Equal(t, "synthesized answer combining both", tp.Text)
}

func TestRouteDeepResearchExtractsScope(t *testing.T) {
	client := &fakeClient{
		completions: []string{`{"routing_decision":"deep_research"}`},
		streamText:  "executive summary",
	}
	loop := newTestLoop(client)
	subAgents := map[string]orchestrator.SubAgent{
		"research": {Name: "research", SystemPrompt: "research prompt"},
	}
	o := orchestrator.New(orchestrator.Options{Classifier: client, DefaultLoop: loop, SubAgents: subAgents})
	sink := &recordingSink{}
	emitter := stream.NewEmitter(sink, "corr-4")

	history := []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "how did sales trend last quarter?"}}}}
	out, err := o.Route(context.Background(), history, baseTurn(), emitter)
	require.NoError(t, err)
	require.Len(t, out, 2)
}
