package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
)

// KeepAliveInterval is how often an idle SSE channel writes a comment frame
// to keep intermediaries from closing the connection (spec §4.4: "every 30s").
const KeepAliveInterval = 30 * time.Second

// SSESink owns one http.ResponseWriter for the lifetime of a request and
// writes StreamFrame values as `data: <json>\n\n` (spec §4.4). It is the
// exclusive owner of the outbound HTTP response (spec §3 ownership); no
// other component writes to w directly.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  telemetry.Logger

	closed    bool
	stopTimer chan struct{}
}

// NewSSESink writes SSE response headers and flushes them immediately so the
// client sees the channel open before any frame arrives. w must implement
// http.Flusher; callers on non-flushing transports should not use this sink.
func NewSSESink(w http.ResponseWriter, logger telemetry.Logger) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("stream: response writer does not support flushing")
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := &SSESink{w: w, flusher: flusher, logger: logger, stopTimer: make(chan struct{})}
	go s.keepAliveLoop()
	return s, nil
}

// Emit writes one frame (spec §4.4). Emits are strictly ordered because Emit
// holds the sink's mutex for the duration of the write (spec §4.4 ordering
// guarantee); the channel is never shared between concurrent requests, so
// this is purely a write-tearing guard, not a fairness mechanism.
func (s *SSESink) Emit(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn(context.Background(), "stream: emit after close dropped", "type", string(frame.Type))
		return nil
	}
	data, err := marshalData(frame)
	if err != nil {
		return fmt.Errorf("stream: marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("stream: write frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Close idempotently stops the keep-alive loop and marks the sink closed.
// Further Emit calls silently no-op (spec §4.4).
func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopTimer)
	return nil
}

func (s *SSESink) keepAliveLoop() {
	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			_, err := fmt.Fprint(s.w, ": keep-alive\n\n")
			if err == nil {
				s.flusher.Flush()
			}
			s.mu.Unlock()
		case <-s.stopTimer:
			return
		}
	}
}
