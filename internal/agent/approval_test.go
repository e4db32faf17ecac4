package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
)

func TestResolveDeliversDecisionToWaiter(t *testing.T) {
	p := agent.NewPendingApprovals()
	promptID, wait := p.Allocate()

	require.NoError(t, p.Resolve(promptID, agent.DecisionApproved))

	decision := <-wait
	assert.Equal(t, agent.DecisionApproved, decision)
}

func TestResolveTwiceFailsSecondTime(t *testing.T) {
	p := agent.NewPendingApprovals()
	promptID, _ := p.Allocate()

	require.NoError(t, p.Resolve(promptID, agent.DecisionDenied))
	err := p.Resolve(promptID, agent.DecisionApproved)
	assert.ErrorIs(t, err, errs.ErrUnknownOrResolvedPrompt)
}

func TestResolveUnknownPromptFails(t *testing.T) {
	p := agent.NewPendingApprovals()
	err := p.Resolve("not-allocated", agent.DecisionApproved)
	assert.ErrorIs(t, err, errs.ErrUnknownOrResolvedPrompt)
}

func TestCancelSendsCancelDecision(t *testing.T) {
	p := agent.NewPendingApprovals()
	promptID, wait := p.Allocate()

	p.Cancel(promptID)

	decision := <-wait
	assert.Equal(t, agent.DecisionCancel, decision)

	// A prompt cancelled once cannot be resolved again.
	err := p.Resolve(promptID, agent.DecisionApproved)
	assert.ErrorIs(t, err, errs.ErrUnknownOrResolvedPrompt)
}
