package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/frappe/erp-coagent-gateway/internal/model"
)

// streamer adapts an Anthropic Messages streaming response into
// model.Streamer, trimmed from the teacher's anthropicStreamer to the chunk
// kinds the agent loop consumes (text, tool_call, usage, stop).
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	chunks chan model.Chunk

	errMu    sync.Mutex
	errSet   bool
	finalErr error
}

func newStreamer(stream *ssestream.Stream[sdk.MessageStreamEventUnion]) model.Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &streamer{ctx: ctx, cancel: cancel, stream: stream, chunks: make(chan model.Chunk, 32)}
	go s.run()
	return s
}

func (s *streamer) Recv() (model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	case <-s.ctx.Done():
		err := s.ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		s.setErr(err)
		return model.Chunk{}, err
	}
}

func (s *streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	toolBlocks := make(map[int]*toolBuffer)
	var stopReason string

	for {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		if !s.stream.Next() {
			s.setErr(s.stream.Err())
			return
		}
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.MessageStartEvent:
			toolBlocks = make(map[int]*toolBuffer)
			stopReason = ""
		case sdk.ContentBlockStartEvent:
			idx := int(ev.Index)
			if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolBlocks[idx] = &toolBuffer{id: toolUse.ID, name: toolUse.Name}
			}
		case sdk.ContentBlockDeltaEvent:
			idx := int(ev.Index)
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				if !s.emit(model.Chunk{Type: model.ChunkTypeText, TextDelta: delta.Text}) {
					return
				}
			case sdk.InputJSONDelta:
				if tb := toolBlocks[idx]; tb != nil && delta.PartialJSON != "" {
					tb.fragments = append(tb.fragments, delta.PartialJSON)
				}
			}
		case sdk.ContentBlockStopEvent:
			idx := int(ev.Index)
			if tb := toolBlocks[idx]; tb != nil {
				delete(toolBlocks, idx)
				part := &model.ToolUsePart{ID: tb.id, Name: tb.name, Input: tb.finalInput()}
				if !s.emit(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: part}) {
					return
				}
			}
		case sdk.MessageDeltaEvent:
			stopReason = string(ev.Delta.StopReason)
			usage := model.TokenUsage{
				InputTokens:  int(ev.Usage.InputTokens),
				OutputTokens: int(ev.Usage.OutputTokens),
				TotalTokens:  int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
			}
			if !s.emit(model.Chunk{Type: model.ChunkTypeUsage, Usage: &usage}) {
				return
			}
		case sdk.MessageStopEvent:
			if !s.emit(model.Chunk{Type: model.ChunkTypeStop, StopReason: stopReason}) {
				return
			}
		}
	}
}

func (s *streamer) emit(chunk model.Chunk) bool {
	select {
	case <-s.ctx.Done():
		return false
	case s.chunks <- chunk:
		return true
	}
}

func (s *streamer) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.errSet {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *streamer) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.finalErr
}

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func (tb *toolBuffer) finalInput() json.RawMessage {
	joined := strings.Join(tb.fragments, "")
	if strings.TrimSpace(joined) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(joined)
}
