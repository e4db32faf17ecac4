// Package cost aggregates model token usage for the GET /monitoring/costs
// operational endpoint (spec §6.1). It is a plain in-memory counter, not a
// billing system: restart loses totals, matching the rest of the gateway's
// in-memory-by-default posture (spec §6.5).
package cost

import (
	"sync"

	"github.com/frappe/erp-coagent-gateway/internal/model"
)

// ModelSnapshot is the accumulated usage for one model identifier.
type ModelSnapshot struct {
	Calls        int64 `json:"calls"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Snapshot is a point-in-time read of every tracked total.
type Snapshot struct {
	Calls        int64                    `json:"calls"`
	InputTokens  int64                    `json:"input_tokens"`
	OutputTokens int64                    `json:"output_tokens"`
	ByModel      map[string]ModelSnapshot `json:"by_model"`
}

// Tracker accumulates model.TokenUsage across every completion/streaming
// call the gateway makes, keyed by model identifier. Safe for concurrent use
// by every in-flight request's agent loop and orchestrator.
type Tracker struct {
	mu      sync.Mutex
	calls   int64
	input   int64
	output  int64
	byModel map[string]*ModelSnapshot
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byModel: make(map[string]*ModelSnapshot)}
}

// Record adds one call's usage to the running totals. modelID may be empty
// (the caller let the adapter pick its default); it is tracked under "" like
// any other key.
func (t *Tracker) Record(modelID string, usage model.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.input += int64(usage.InputTokens)
	t.output += int64(usage.OutputTokens)
	m, ok := t.byModel[modelID]
	if !ok {
		m = &ModelSnapshot{}
		t.byModel[modelID] = m
	}
	m.Calls++
	m.InputTokens += int64(usage.InputTokens)
	m.OutputTokens += int64(usage.OutputTokens)
}

// Snapshot returns a copy of the current totals.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := Snapshot{Calls: t.calls, InputTokens: t.input, OutputTokens: t.output, ByModel: make(map[string]ModelSnapshot, len(t.byModel))}
	for k, v := range t.byModel {
		out.ByModel[k] = *v
	}
	return out
}
