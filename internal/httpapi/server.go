// Package httpapi implements the gateway's HTTP surface (spec §6.1):
// POST /agui, POST /agui/resume, GET /health, and the two GET
// /monitoring/* operational endpoints. Routing uses the standard
// library's http.ServeMux; no middleware framework sits in front of it.
package httpapi

import (
	"net/http"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/cost"
	"github.com/frappe/erp-coagent-gateway/internal/erp"
	"github.com/frappe/erp-coagent-gateway/internal/orchestrator"
	"github.com/frappe/erp-coagent-gateway/internal/resilience"
	"github.com/frappe/erp-coagent-gateway/internal/session"
	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
	"github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflowregistry"
)

// DefaultSystemPrompt seeds a turn's system prompt when the caller does not
// configure one some other way (for example, via a routed sub-agent config,
// which overrides it).
const DefaultSystemPrompt = `You are the coagent assistant embedded in an ERP workspace. Use the tools available to you to inspect and modify business documents on the user's behalf. Prefer the least destructive tool that answers the request, and explain what you did in plain language.`

// Server holds every component the HTTP surface dispatches to. It owns no
// business logic of its own: each handler translates one HTTP request into
// calls against these components and frames the result as SSE or JSON.
type Server struct {
	Sessions    *session.Store
	ERP         *erp.Client
	Approvals   *agent.PendingApprovals
	DefaultLoop *agent.Loop
	Orchestrator *orchestrator.Orchestrator
	Engine      *workflow.Engine
	Workflows   *workflowregistry.Registry
	Costs       *cost.Tracker
	Breakers    *resilience.Registry
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics
	Tracer      telemetry.Tracer

	mux *http.ServeMux
}

// New builds a Server and registers every route.
func New(s Server) *Server {
	if s.Logger == nil {
		s.Logger = telemetry.NewNoopLogger()
	}
	if s.Metrics == nil {
		s.Metrics = telemetry.NewNoopMetrics()
	}
	if s.Tracer == nil {
		s.Tracer = telemetry.NewNoopTracer()
	}
	srv := &s
	srv.mux = http.NewServeMux()
	srv.routes()
	return srv
}

// Handler returns the server's http.Handler, suitable for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /agui", s.handleAGUI)
	s.mux.HandleFunc("POST /agui/resume", s.handleResume)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /monitoring/costs", s.handleCosts)
	s.mux.HandleFunc("GET /monitoring/circuit-breaker", s.handleCircuitBreaker)
}
