// Package model defines the provider-agnostic message and streaming types
// used by the agent loop and orchestrator (spec §4.5, §9 decision 3: "one
// model.Client interface"). Provider adapters translate these into their
// own wire formats.
package model

import (
	"context"
	"encoding/json"
	"errors"
)

// ConversationRole is the role for a message in a transcript.
type ConversationRole string

const (
	RoleSystem    ConversationRole = "system"
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
)

type (
	// Part is a marker interface implemented by every message content block.
	Part interface{ isPart() }

	// TextPart is plain assistant- or user-visible text.
	TextPart struct{ Text string }

	// ToolUsePart declares a tool invocation requested by the assistant.
	ToolUsePart struct {
		ID    string
		Name  string
		Input json.RawMessage
	}

	// ToolResultPart carries a tool result fed back to the model as part of
	// a synthetic user turn (spec §4.5 step f).
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}

	// Message is one transcript entry.
	Message struct {
		Role  ConversationRole
		Parts []Part
	}

	// ToolDefinition describes one tool exposed to the model, derived from
	// tools.Definition (spec §9 decision 2: registry schema is the single
	// source of truth).
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema map[string]any
	}

	// TokenUsage tracks token counts for one model call.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Request captures the inputs to one model invocation.
	Request struct {
		Model       string
		Messages    []Message
		System      string
		Tools       []ToolDefinition
		Temperature float32
		MaxTokens   int
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		Content    []Message
		ToolCalls  []ToolUsePart
		Usage      TokenUsage
		StopReason string
	}

	// Chunk is one streaming event from the model.
	Chunk struct {
		Type       ChunkType
		TextDelta  string
		ToolCall   *ToolUsePart
		Usage      *TokenUsage
		StopReason string
	}

	// ChunkType classifies a Chunk.
	ChunkType string

	// Streamer delivers incremental model output. Callers drain Recv until
	// io.EOF, then call Close.
	Streamer interface {
		Recv() (Chunk, error)
		Close() error
	}

	// Client is the provider-agnostic model client (spec §9 decision 3).
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
		Stream(ctx context.Context, req *Request) (Streamer, error)
	}
)

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeToolCall ChunkType = "tool_call"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeStop     ChunkType = "stop"
)

// ErrStreamingUnsupported indicates the provider does not support streaming.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")

func (TextPart) isPart()       {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}
