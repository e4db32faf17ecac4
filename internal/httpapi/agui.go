package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/model"
	"github.com/frappe/erp-coagent-gateway/internal/session"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
)

// aguiRequest is the POST /agui body (spec §6.1).
type aguiRequest struct {
	SessionID         string         `json:"session_id"`
	UserID            string         `json:"user_id"`
	Doctype           string         `json:"doctype"`
	DocName           string         `json:"doc_name"`
	EnabledIndustries []string       `json:"enabled_industries"`
	Message           string         `json:"message"`
	GraphName         string         `json:"graph_name"`
	InitialState      map[string]any `json:"initial_state"`
}

// handleAGUI implements POST /agui: it opens an SSE stream and drives either
// a named workflow graph or the orchestrator/default agent loop to
// completion or interruption (spec §6.1, §4.5, §4.7).
func (s *Server) handleAGUI(w http.ResponseWriter, r *http.Request) {
	var req aguiRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.Sessions.GetOrCreate(req.SessionID, session.Params{
		UserID:            req.UserID,
		Doctype:           req.Doctype,
		DocName:           req.DocName,
		EnabledIndustries: req.EnabledIndustries,
	})
	if err != nil {
		writeError(w, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err))
		return
	}

	sink, err := stream.NewSSESink(w, s.Logger)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %s", errs.ErrInternal, err))
		return
	}
	defer sink.Close()

	emitter := stream.NewEmitter(sink, uuid.NewString())
	_ = emitter.Status("processing")

	ctx, span := s.Tracer.StartSpan(r.Context(), "agui.turn")
	defer span.End()
	span.SetAttribute("session_id", sess.ID)
	started := time.Now()
	s.Metrics.IncCounter("agui.requests", 1)

	history := s.loadHistory(sess)
	if req.Message != "" {
		history = append(history, model.Message{
			Role:  model.RoleUser,
			Parts: []model.Part{model.TextPart{Text: req.Message}},
		})
	}

	turn := agent.Turn{
		SystemPrompt:      DefaultSystemPrompt,
		EnabledIndustries: sess.EnabledIndustries,
		DocState:          s.resolveDocState(ctx, sess.Doctype, sess.DocName),
	}

	var runErr error
	isGraph := req.GraphName != ""
	if isGraph {
		runErr = s.runGraph(ctx, req.GraphName, req.InitialState, emitter)
	} else if s.Orchestrator != nil {
		history, runErr = s.Orchestrator.Route(ctx, history, turn, emitter)
	} else {
		history, runErr = s.DefaultLoop.Run(ctx, history, turn, emitter)
	}

	s.Metrics.RecordTimer("agui.turn_duration", time.Since(started))
	if runErr != nil {
		frame := errs.ToFrame(runErr)
		_ = emitter.Error(frame.Code, frame.Message)
		s.Metrics.IncCounter("agui.errors", 1, "code", frame.Code)
		span.RecordError(runErr)
		s.Logger.Error(ctx, "agui: turn failed", "error", runErr.Error(), "session_id", sess.ID)
		return
	}
	// A workflow graph's state lives in its own checkpoint chain, keyed by
	// thread_id, not the session's conversation history (spec §6.5).
	if !isGraph {
		s.Sessions.SetContext(sess.ID, "history", history)
	}
}

// runGraph starts graphName fresh (spec §6.1: "If graph_name is present, it
// invokes the workflow path directly"). A fresh POST /agui never resumes an
// existing thread; that only happens through POST /agui/resume.
func (s *Server) runGraph(ctx context.Context, graphName string, initialState map[string]any, emitter *stream.Emitter) error {
	g, _, ok := s.Workflows.Get(graphName)
	if !ok {
		return fmt.Errorf("%w: unknown graph %q", errs.ErrInvalidInput, graphName)
	}
	_, err := s.Engine.Start(ctx, g, "", initialState, emitter)
	return err
}

func (s *Server) loadHistory(sess *session.Session) []model.Message {
	if raw, ok := sess.Context["history"]; ok {
		if history, ok := raw.([]model.Message); ok {
			return history
		}
	}
	return nil
}

// resolveDocState derives the risk classifier's DocumentState for the
// session's anchor document, if any, by reading its current submission
// status from the ERP (spec §4.2 signal 1: "any op on submitted/cancelled
// doc is high risk" requires knowing the document's current state, not just
// the tool call in isolation).
func (s *Server) resolveDocState(ctx context.Context, doctype, docName string) risk.DocumentState {
	if doctype == "" || docName == "" || s.ERP == nil {
		return risk.DocumentState{}
	}
	doc, err := s.ERP.Get(ctx, doctype, docName)
	if err != nil {
		return risk.DocumentState{}
	}
	state := risk.DocumentState{DocumentCount: 1}
	switch docstatus := doc["docstatus"].(type) {
	case float64:
		state.Submitted = docstatus == 1
		state.Cancelled = docstatus == 2
	}
	return state
}
