package resilience

import (
	"context"
	"fmt"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/model"
)

// guardedModelClient wraps a model.Client so every Complete/Stream call
// trips breaker on failure, without the agent loop or orchestrator needing
// to know the LLM call is guarded (spec §9 decision 3: one model.Client
// interface, adapters and decorators alike satisfy it).
type guardedModelClient struct {
	inner   model.Client
	breaker *Breaker
}

// WrapModelClient decorates inner with breaker, open-circuiting further
// calls once consecutive failures cross its threshold (spec §7:
// "rate_limited_upstream ... escalates to circuit-breaker open state").
func WrapModelClient(inner model.Client, breaker *Breaker) model.Client {
	return &guardedModelClient{inner: inner, breaker: breaker}
}

func (g *guardedModelClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit breaker open for llm", errs.ErrRateLimitedUpstream)
	}
	resp, err := g.inner.Complete(ctx, req)
	g.record(err)
	return resp, err
}

func (g *guardedModelClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit breaker open for llm", errs.ErrRateLimitedUpstream)
	}
	s, err := g.inner.Stream(ctx, req)
	g.record(err)
	return s, err
}

func (g *guardedModelClient) record(err error) {
	if err != nil {
		g.breaker.RecordFailure()
		return
	}
	g.breaker.RecordSuccess()
}
