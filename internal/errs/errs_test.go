package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
)

func TestToFrameMapsEverySentinelKind(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{errs.ErrInvalidInput, "invalid_input"},
		{errs.ErrUnknownTool, "unknown_tool"},
		{errs.ErrUnknownOrResolvedPrompt, "unknown_or_resolved_prompt"},
		{errs.ErrUserCancelled, "user_cancelled"},
		{errs.ErrBatchLimitExceeded, "batch_limit_exceeded"},
		{errs.ErrERPTransient, "erp_transient"},
		{errs.ErrERPPermanent, "erp_permanent"},
		{errs.ErrRateLimitedUpstream, "rate_limited_upstream"},
		{errs.ErrMaxIterationsExceeded, "max_iterations_exceeded"},
	}
	for _, c := range cases {
		wrapped := fmt.Errorf("context: %w", c.err)
		f := errs.ToFrame(wrapped)
		assert.Equal(t, c.code, f.Code)
		assert.Contains(t, f.Message, c.err.Error())
	}
}

func TestToFrameNilErrorReturnsEmptyFrame(t *testing.T) {
	assert.Equal(t, errs.Frame{}, errs.ToFrame(nil))
}

func TestToFrameUnrecognizedErrorIsInternalWithGenericMessage(t *testing.T) {
	f := errs.ToFrame(errors.New("some unexpected database failure with a connection string"))
	assert.Equal(t, "internal_error", f.Code)
	assert.Equal(t, "internal error", f.Message)
}
