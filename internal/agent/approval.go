package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
)

// Decision is the resolved outcome of an ApprovalRequest (spec §3).
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionCancel   Decision = "cancel"
)

// PendingApprovals implements the pending-resolver HITL model (spec §9
// decision 1): each prompt_id maps to a channel the agent loop blocks on
// until a matching resume request arrives. Resolving an unknown or
// already-resolved prompt fails with errs.ErrUnknownOrResolvedPrompt,
// enforcing invariant 4 ("each prompt_id is resolved at most once").
type PendingApprovals struct {
	mu      sync.Mutex
	pending map[string]chan Decision
}

// NewPendingApprovals builds an empty resolver table.
func NewPendingApprovals() *PendingApprovals {
	return &PendingApprovals{pending: make(map[string]chan Decision)}
}

// Allocate creates a new prompt_id and its resolution channel.
func (p *PendingApprovals) Allocate() (promptID string, wait <-chan Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Decision, 1)
	p.pending[id] = ch
	return id, ch
}

// Resolve delivers decision to the waiter registered for promptID. It
// removes the entry first so a concurrent duplicate resolve observes
// ErrUnknownOrResolvedPrompt rather than racing on a closed channel.
func (p *PendingApprovals) Resolve(promptID string, decision Decision) error {
	p.mu.Lock()
	ch, ok := p.pending[promptID]
	if ok {
		delete(p.pending, promptID)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrUnknownOrResolvedPrompt, promptID)
	}
	ch <- decision
	close(ch)
	return nil
}

// Cancel removes promptID without resolving it, used when the owning
// request is abandoned (for example, the SSE connection closed) so the
// agent loop's wait does not leak.
func (p *PendingApprovals) Cancel(promptID string) {
	p.mu.Lock()
	ch, ok := p.pending[promptID]
	if ok {
		delete(p.pending, promptID)
	}
	p.mu.Unlock()
	if ok {
		ch <- DecisionCancel
		close(ch)
	}
}
