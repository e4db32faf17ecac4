package stream

import "time"

// Emitter wraps a Sink with a fixed correlation_id, threading it onto every
// frame so all SSE frames for one logical request share the same id (spec §3
// invariant 7, §9 "Correlation across streams"). nowFn exists so tests can
// supply a deterministic clock.
type Emitter struct {
	sink          Sink
	correlationID string
	nowFn         func() time.Time
}

// NewEmitter builds an Emitter bound to correlationID.
func NewEmitter(sink Sink, correlationID string) *Emitter {
	return &Emitter{sink: sink, correlationID: correlationID, nowFn: time.Now}
}

func (e *Emitter) frame(t FrameType, data any) Frame {
	return Frame{Type: t, CorrelationID: e.correlationID, Timestamp: e.nowFn(), Data: data}
}

// Message emits a message frame carrying one assistant text delta.
func (e *Emitter) Message(text string) error {
	return e.sink.Emit(e.frame(FrameMessage, MessageData{Text: text}))
}

// ToolCall emits a tool_call frame.
func (e *Emitter) ToolCall(toolCallID, name string, input map[string]any) error {
	return e.sink.Emit(e.frame(FrameToolCall, ToolCallData{ToolCallID: toolCallID, Name: name, Input: input}))
}

// ToolResult emits a tool_result frame. Exactly one of result/errMsg should
// be set.
func (e *Emitter) ToolResult(toolCallID, name string, result any, errMsg string) error {
	return e.sink.Emit(e.frame(FrameToolResult, ToolResultData{
		ToolCallID: toolCallID, Name: name, Result: result, Error: errMsg,
	}))
}

// UIPrompt emits a ui_prompt frame: the HITL approval gate (spec §4.5 step e).
func (e *Emitter) UIPrompt(promptID, toolName, preview, risk string) error {
	return e.sink.Emit(e.frame(FrameUIPrompt, UIPromptData{
		PromptID: promptID, ToolName: toolName, Preview: preview, Risk: risk,
	}))
}

// UIResponse emits a ui_response frame echoing a resolved decision.
func (e *Emitter) UIResponse(promptID, decision string) error {
	return e.sink.Emit(e.frame(FrameUIResponse, UIResponseData{PromptID: promptID, Decision: decision}))
}

// Status emits a status frame (spec §4.5 step d).
func (e *Emitter) Status(status string) error {
	return e.sink.Emit(e.frame(FrameStatus, StatusData{Status: status}))
}

// Error emits an error frame with the given taxonomy code and message
// (produced upstream by errs.ToFrame).
func (e *Emitter) Error(code, message string) error {
	return e.sink.Emit(e.frame(FrameError, ErrorData{Code: code, Message: message}))
}

// CorrelationID returns the id threaded onto every frame from this emitter.
func (e *Emitter) CorrelationID() string { return e.correlationID }
