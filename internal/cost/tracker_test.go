package cost_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frappe/erp-coagent-gateway/internal/cost"
	"github.com/frappe/erp-coagent-gateway/internal/model"
)

func TestRecordAccumulatesTotals(t *testing.T) {
	tr := cost.NewTracker()
	tr.Record("claude-x", model.TokenUsage{InputTokens: 10, OutputTokens: 20})
	tr.Record("claude-x", model.TokenUsage{InputTokens: 5, OutputTokens: 1})
	tr.Record("claude-y", model.TokenUsage{InputTokens: 1, OutputTokens: 1})

	snap := tr.Snapshot()
	assert.EqualValues(t, 3, snap.Calls)
	assert.EqualValues(t, 16, snap.InputTokens)
	assert.EqualValues(t, 22, snap.OutputTokens)
	assert.EqualValues(t, 2, snap.ByModel["claude-x"].Calls)
	assert.EqualValues(t, 15, snap.ByModel["claude-x"].InputTokens)
	assert.EqualValues(t, 1, snap.ByModel["claude-y"].Calls)
}

func TestRecordEmptyModelIDTrackedUnderEmptyKey(t *testing.T) {
	tr := cost.NewTracker()
	tr.Record("", model.TokenUsage{InputTokens: 1})
	snap := tr.Snapshot()
	assert.Contains(t, snap.ByModel, "")
}

func TestRecordIsConcurrencySafe(t *testing.T) {
	tr := cost.NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("m", model.TokenUsage{InputTokens: 1, OutputTokens: 1})
		}()
	}
	wg.Wait()
	snap := tr.Snapshot()
	assert.EqualValues(t, 100, snap.Calls)
}
