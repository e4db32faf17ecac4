package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/workflow"
)

func testSchema() workflow.Schema {
	return workflow.Schema{
		"reservation_id": {Required: true},
		"folio_id":       {Required: false, Default: func() any { return "" }},
		"charges":        {Required: false, Default: func() any { return []any{} }, Reducer: workflow.ReducerAppend},
	}
}

func TestValidateAndFillRejectsMissingRequiredField(t *testing.T) {
	_, err := testSchema().ValidateAndFill(map[string]any{})
	assert.Error(t, err)
}

func TestValidateAndFillFillsDefaults(t *testing.T) {
	out, err := testSchema().ValidateAndFill(map[string]any{"reservation_id": "RES-1"})
	require.NoError(t, err)
	assert.Equal(t, "RES-1", out["reservation_id"])
	assert.Equal(t, "", out["folio_id"])
	assert.Equal(t, []any{}, out["charges"])
}

func TestValidateAndFillPreservesSuppliedOptionalValue(t *testing.T) {
	out, err := testSchema().ValidateAndFill(map[string]any{"reservation_id": "RES-1", "folio_id": "FOL-9"})
	require.NoError(t, err)
	assert.Equal(t, "FOL-9", out["folio_id"])
}

func TestMergeReplacesByDefault(t *testing.T) {
	s := testSchema()
	state := map[string]any{"reservation_id": "RES-1", "folio_id": ""}
	out := s.Merge(state, map[string]any{"folio_id": "FOL-1"})
	assert.Equal(t, "FOL-1", out["folio_id"])
}

func TestMergeAppendsSliceFields(t *testing.T) {
	s := testSchema()
	state := map[string]any{"charges": []any{"room"}}
	out := s.Merge(state, map[string]any{"charges": []any{"minibar"}})
	assert.Equal(t, []any{"room", "minibar"}, out["charges"])
}

func TestMergeAppendsSingleValueOntoSlice(t *testing.T) {
	s := testSchema()
	state := map[string]any{"charges": []any{"room"}}
	out := s.Merge(state, map[string]any{"charges": "minibar"})
	assert.Equal(t, []any{"room", "minibar"}, out["charges"])
}

func TestMergeDoesNotMutateOriginalState(t *testing.T) {
	s := testSchema()
	state := map[string]any{"reservation_id": "RES-1"}
	_ = s.Merge(state, map[string]any{"reservation_id": "RES-2"})
	assert.Equal(t, "RES-1", state["reservation_id"])
}
