package workflow

import "time"

// Status is a WorkflowInstance's lifecycle state (spec §3).
type Status string

const (
	StatusRunning     Status = "running"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// HistoryEntry records one node visit (spec §3: "history (append-only list
// of {node, timestamp, outcome}")").
type HistoryEntry struct {
	Node      string    `json:"node"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
}

// Instance is a WorkflowInstance (spec §3, runtime): the live, mutable
// execution of one Graph, identified by ThreadID for checkpoint
// correlation (invariant 7 keys this to correlation_id at the HTTP
// boundary).
type Instance struct {
	InstanceID  string
	GraphName   string
	ThreadID    string
	State       map[string]any
	CurrentNode string
	History     []HistoryEntry
	Status      Status
	// InterruptPayload is set when Status is StatusInterrupted, holding the
	// payload the node passed to Interrupt, for the ui_prompt frame.
	InterruptPayload any
}
