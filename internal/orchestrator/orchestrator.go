package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/cost"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/model"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
)

// RoutingDecision is the classifier's chosen strategy for one user turn
// (spec §4.6).
type RoutingDecision string

const (
	RouteDirect        RoutingDecision = "direct"
	RouteDelegate      RoutingDecision = "delegate"
	RouteMultiIndustry RoutingDecision = "multi_industry"
	RouteDeepResearch  RoutingDecision = "deep_research"
)

// Classification is the structured result of the classification prompt
// (spec §4.6: "{industry, complexity, routing_decision, requires_subagents,
// confidence}").
type Classification struct {
	Industry          string          `json:"industry"`
	Complexity        string          `json:"complexity"`
	RoutingDecision   RoutingDecision `json:"routing_decision"`
	RequiresSubAgents []string        `json:"requires_subagents"`
	Confidence        float64         `json:"confidence"`
}

// Options configures an Orchestrator.
type Options struct {
	Classifier  model.Client
	DefaultLoop *agent.Loop
	SubAgents   map[string]SubAgent
	Logger      telemetry.Logger
	// CostTracker, if set, accumulates token usage from the classification
	// and multi-industry synthesis calls (the default loop tracks its own
	// usage separately, via agent.Options.CostTracker).
	CostTracker *cost.Tracker
}

// Orchestrator implements component C7 (spec §4.6): it classifies the
// opening message of a turn and routes it to the default agent loop, a
// single sub-agent, a parallel fan-out of sub-agents, or a deep-research
// sub-agent.
type Orchestrator struct {
	classifier  model.Client
	defaultLoop *agent.Loop
	subAgents   map[string]SubAgent
	logger      telemetry.Logger
	costTracker *cost.Tracker
}

// New builds an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Orchestrator{
		classifier:  opts.Classifier,
		defaultLoop: opts.DefaultLoop,
		subAgents:   opts.SubAgents,
		logger:      logger,
		costTracker: opts.CostTracker,
	}
}

const classificationSystemPrompt = `You are a routing classifier for an ERP assistant. Given the user's message, reply with ONLY a JSON object of the form:
{"industry": "<industry tag or empty>", "complexity": "<low|medium|high>", "routing_decision": "<direct|delegate|multi_industry|deep_research>", "requires_subagents": ["<sub-agent name>", ...], "confidence": <0..1>}
Choose "direct" for ordinary single-industry requests, "delegate" when exactly one specialized sub-agent fits better than the default assistant, "multi_industry" when the request spans more than one industry's sub-agent, and "deep_research" for open-ended analytical or historical questions. List every sub-agent name the decision depends on in requires_subagents.`

// Classify runs the classification prompt against userMessage.
func (o *Orchestrator) Classify(ctx context.Context, userMessage string) (Classification, error) {
	req := &model.Request{
		System: classificationSystemPrompt,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: userMessage}}},
		},
		MaxTokens: 512,
	}
	resp, err := o.classifier.Complete(ctx, req)
	if err != nil {
		return Classification{}, fmt.Errorf("%w: classification: %s", errs.ErrInternal, err)
	}
	if o.costTracker != nil {
		o.costTracker.Record(req.Model, resp.Usage)
	}
	text := firstText(resp)
	var c Classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &c); err != nil {
		return Classification{}, fmt.Errorf("%w: decode classification: %s", errs.ErrInternal, err)
	}
	if c.RoutingDecision == "" {
		c.RoutingDecision = RouteDirect
	}
	return c, nil
}

// Route dispatches userMessage according to its classification (spec §4.6
// routing table) and returns the updated transcript.
func (o *Orchestrator) Route(ctx context.Context, history []model.Message, turn agent.Turn, emitter *stream.Emitter) ([]model.Message, error) {
	userMessage := lastUserText(history)
	classification, err := o.Classify(ctx, userMessage)
	if err != nil {
		o.logger.Warn(ctx, "orchestrator: classification failed, falling back to direct", "error", err.Error())
		classification = Classification{RoutingDecision: RouteDirect}
	}
	_ = emitter.Status("routing:" + string(classification.RoutingDecision))

	switch classification.RoutingDecision {
	case RouteDelegate:
		if len(classification.RequiresSubAgents) == 1 {
			if sa, ok := o.subAgents[classification.RequiresSubAgents[0]]; ok {
				return o.defaultLoop.Run(ctx, history, o.turnForSubAgent(turn, sa), emitter)
			}
		}
		o.logger.Warn(ctx, "orchestrator: delegate route missing a resolvable sub-agent, falling back to direct")
		return o.defaultLoop.Run(ctx, history, turn, emitter)

	case RouteMultiIndustry:
		return o.runMultiIndustry(ctx, history, turn, classification.RequiresSubAgents, emitter)

	case RouteDeepResearch:
		return o.runDeepResearch(ctx, history, turn, userMessage, emitter)

	default: // RouteDirect and any unrecognized value
		return o.defaultLoop.Run(ctx, history, turn, emitter)
	}
}

func (o *Orchestrator) turnForSubAgent(base agent.Turn, sa SubAgent) agent.Turn {
	t := base
	t.SystemPrompt = sa.SystemPrompt
	if len(sa.Tools) > 0 {
		t.EnabledIndustries = sa.Tools
	}
	return t
}

// runMultiIndustry invokes each named sub-agent in parallel against its own
// transcript copy, then synthesizes their text replies via an aggregator
// prompt (spec §4.6: "{strategy: synthesis, sources: [...]}").
func (o *Orchestrator) runMultiIndustry(ctx context.Context, history []model.Message, turn agent.Turn, subAgentNames []string, emitter *stream.Emitter) ([]model.Message, error) {
	type outcome struct {
		name string
		text string
	}
	outcomes := make([]outcome, len(subAgentNames))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range subAgentNames {
		i, name := i, name
		g.Go(func() error {
			sa, ok := o.subAgents[name]
			if !ok {
				outcomes[i] = outcome{name: name, text: ""}
				return nil
			}
			subHistory := append([]model.Message(nil), history...)
			result, err := o.defaultLoop.Run(gctx, subHistory, o.turnForSubAgent(turn, sa), emitter)
			if err != nil {
				return err
			}
			outcomes[i] = outcome{name: name, text: lastAssistantText(result)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return history, err
	}

	sources := make([]string, 0, len(outcomes))
	for _, oc := range outcomes {
		if oc.text != "" {
			sources = append(sources, fmt.Sprintf("[%s]: %s", oc.name, oc.text))
		}
	}
	synthesisPrompt := "Synthesize the following sub-agent findings into one coherent answer for the user:\n\n" + strings.Join(sources, "\n\n")
	synthesisReq := &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: synthesisPrompt}}}},
	}
	synthesized, err := o.classifier.Complete(ctx, synthesisReq)
	if err != nil {
		return history, fmt.Errorf("%w: synthesis: %s", errs.ErrInternal, err)
	}
	if o.costTracker != nil {
		o.costTracker.Record(synthesisReq.Model, synthesized.Usage)
	}
	text := firstText(synthesized)
	_ = emitter.Message(text)
	return append(history, model.Message{Role: model.RoleAssistant, Parts: []model.Part{model.TextPart{Text: text}}}), nil
}

// runDeepResearch invokes the "research" sub-agent, if configured, with
// scope keywords extracted from userMessage, and returns its reply as an
// executive summary (spec §4.6).
func (o *Orchestrator) runDeepResearch(ctx context.Context, history []model.Message, turn agent.Turn, userMessage string, emitter *stream.Emitter) ([]model.Message, error) {
	sa, ok := o.subAgents["research"]
	if !ok {
		return o.defaultLoop.Run(ctx, history, turn, emitter)
	}
	scope := extractScope(userMessage)
	researchTurn := o.turnForSubAgent(turn, sa)
	if scope != "" {
		researchTurn.SystemPrompt += "\n\nScope: " + scope
	}
	return o.defaultLoop.Run(ctx, history, researchTurn, emitter)
}

var scopeKeywords = []string{"last month", "last quarter", "last year", "this month", "this quarter", "ytd", "q1", "q2", "q3", "q4"}

// extractScope pulls a coarse time-period keyword out of userMessage, if
// present, for the deep_research route's scope hint.
func extractScope(userMessage string) string {
	lower := strings.ToLower(userMessage)
	var found []string
	for _, kw := range scopeKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return strings.Join(found, ", ")
}

func firstText(resp *model.Response) string {
	for _, msg := range resp.Content {
		for _, part := range msg.Parts {
			if tp, ok := part.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

func lastUserText(history []model.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != model.RoleUser {
			continue
		}
		for _, part := range history[i].Parts {
			if tp, ok := part.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

func lastAssistantText(history []model.Message) string {
	var sb strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != model.RoleAssistant {
			continue
		}
		for _, part := range history[i].Parts {
			if tp, ok := part.(model.TextPart); ok {
				sb.WriteString(tp.Text)
			}
		}
		break
	}
	return sb.String()
}
