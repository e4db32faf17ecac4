package httpapi

import (
	"fmt"
	"net/http"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/decision"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
)

// resumeRequest is the POST /agui/resume body (spec §6.1). Exactly one of
// PromptID/ThreadID identifies what is being resolved.
type resumeRequest struct {
	SessionID string `json:"session_id"`
	PromptID  string `json:"prompt_id"`
	ThreadID  string `json:"thread_id"`
	Decision  any    `json:"decision"`
}

type resumeResponse struct {
	OK bool `json:"ok"`
}

// handleResume implements POST /agui/resume (spec §6.1). The two HITL
// models it resolves are scoped distinctly (spec §9 decision 1): resolving
// a prompt_id unblocks the agent loop's waiting goroutine on the original
// POST /agui connection and returns a plain {ok} here; resolving a
// thread_id re-enters a suspended workflow graph, which has no live
// goroutine left to stream into, so this request opens its own SSE channel
// to carry the graph's continuation.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	approved := decision.Normalize(req.Decision)

	switch {
	case req.PromptID != "":
		s.resolvePrompt(w, req.PromptID, approved)
	case req.ThreadID != "":
		s.resumeWorkflow(w, r, req.ThreadID, approved)
	default:
		writeError(w, fmt.Errorf("%w: resume requires prompt_id or thread_id", errs.ErrInvalidInput))
	}
}

func (s *Server) resolvePrompt(w http.ResponseWriter, promptID string, approved bool) {
	d := agent.DecisionCancel
	if approved {
		d = agent.DecisionApproved
	}
	if err := s.Approvals.Resolve(promptID, d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumeResponse{OK: true})
}

func (s *Server) resumeWorkflow(w http.ResponseWriter, r *http.Request, threadID string, approved bool) {
	graphName, err := s.Engine.GraphNameForThread(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}
	g, _, ok := s.Workflows.Get(graphName)
	if !ok {
		writeError(w, fmt.Errorf("%w: graph %q no longer registered", errs.ErrInvalidInput, graphName))
		return
	}

	sink, err := stream.NewSSESink(w, s.Logger)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %s", errs.ErrInternal, err))
		return
	}
	defer sink.Close()

	emitter := stream.NewEmitter(sink, threadID)
	_ = emitter.Status("processing")

	if _, err := s.Engine.Resume(r.Context(), g, threadID, approved, emitter); err != nil {
		frame := errs.ToFrame(err)
		_ = emitter.Error(frame.Code, frame.Message)
		s.Logger.Error(r.Context(), "agui/resume: workflow resume failed", "error", err.Error(), "thread_id", threadID)
	}
}
