// Package checkpoint implements the Workflow Engine's persisted state layer
// (spec §6.5): an ordered, single-parent chain of checkpoints per thread_id,
// pluggable between an in-memory default and a Redis-backed store for
// deployments that need workflow state to survive process restarts.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrParentMismatch indicates an Append's ParentID does not match the
// thread's current latest checkpoint, meaning a concurrent writer raced
// ahead (spec §6.5: "Concurrent writes for the same thread_id are
// disallowed; the engine guarantees at most one active step per instance").
var ErrParentMismatch = errors.New("checkpoint: parent does not match latest checkpoint")

// Checkpoint is one persisted snapshot of a WorkflowInstance (spec §3:
// "(checkpoint_id, parent_id, serialized_state, metadata)").
type Checkpoint struct {
	ID        string          `json:"id"`
	ParentID  string          `json:"parent_id,omitempty"`
	ThreadID  string          `json:"thread_id"`
	Node      string          `json:"node"`
	Status    string          `json:"status"`
	State     json.RawMessage `json:"state"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists a single-parent checkpoint chain keyed by thread_id (spec
// §6.5, invariant 6). Append must reject a checkpoint whose ParentID does
// not match the current latest checkpoint for the thread, except for the
// first checkpoint of a new thread (ParentID empty).
type Store interface {
	// Append adds cp as the new head of threadID's chain. Returns
	// ErrParentMismatch if cp.ParentID does not match the current latest
	// checkpoint id.
	Append(ctx context.Context, cp Checkpoint) error
	// Latest returns the most recently appended checkpoint for threadID, or
	// ok=false if the thread has no checkpoints.
	Latest(ctx context.Context, threadID string) (cp Checkpoint, ok bool, err error)
}
