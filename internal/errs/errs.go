// Package errs defines the gateway-wide error taxonomy (spec §7). Each kind
// is a sentinel error; call sites wrap it with context via fmt.Errorf("...:
// %w", ErrX) so errors.Is still matches across the stack.
package errs

import "errors"

// Kind identifies one of the taxonomy's error kinds for wire translation.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindUnknownTool           Kind = "unknown_tool"
	KindUnknownOrResolved     Kind = "unknown_or_resolved_prompt"
	KindUserCancelled         Kind = "user_cancelled"
	KindBatchLimitExceeded    Kind = "batch_limit_exceeded"
	KindERPTransient          Kind = "erp_transient"
	KindERPPermanent          Kind = "erp_permanent"
	KindRateLimitedUpstream   Kind = "rate_limited_upstream"
	KindMaxIterationsExceeded Kind = "max_iterations_exceeded"
	KindInternal              Kind = "internal_error"
)

var (
	// ErrInvalidInput indicates a tool call or HTTP body failed schema validation.
	ErrInvalidInput = errors.New(string(KindInvalidInput))
	// ErrUnknownTool indicates the tool name is not in the session's filtered registry.
	ErrUnknownTool = errors.New(string(KindUnknownTool))
	// ErrUnknownOrResolvedPrompt indicates a resume targeted a prompt that never
	// existed or has already been resolved.
	ErrUnknownOrResolvedPrompt = errors.New(string(KindUnknownOrResolved))
	// ErrUserCancelled indicates an approval was resolved with a cancel decision.
	ErrUserCancelled = errors.New(string(KindUserCancelled))
	// ErrBatchLimitExceeded indicates a bulk write exceeded BULK_MAX_BATCH.
	ErrBatchLimitExceeded = errors.New(string(KindBatchLimitExceeded))
	// ErrERPTransient indicates a 5xx or network error from the ERP backend.
	ErrERPTransient = errors.New(string(KindERPTransient))
	// ErrERPPermanent indicates a 4xx error from the ERP backend.
	ErrERPPermanent = errors.New(string(KindERPPermanent))
	// ErrRateLimitedUpstream indicates the LLM or ERP reported throttling.
	ErrRateLimitedUpstream = errors.New(string(KindRateLimitedUpstream))
	// ErrMaxIterationsExceeded indicates the agent loop hit MAX_ITERATIONS.
	ErrMaxIterationsExceeded = errors.New(string(KindMaxIterationsExceeded))
	// ErrInternal wraps any uncaught internal failure.
	ErrInternal = errors.New(string(KindInternal))
)

// Frame is the sanitized, wire-safe representation of an error for an SSE
// `error` frame or an HTTP error body. Stack traces and internal detail are
// never placed here; they belong in the server-side log line that
// ToFrame's caller should also emit.
type Frame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToFrame maps any error into a sanitized Frame. Unrecognized errors are
// classified as KindInternal with a generic message so internals never leak
// to the client.
func ToFrame(err error) Frame {
	if err == nil {
		return Frame{}
	}
	for _, kind := range []struct {
		sentinel error
		kind     Kind
	}{
		{ErrInvalidInput, KindInvalidInput},
		{ErrUnknownTool, KindUnknownTool},
		{ErrUnknownOrResolvedPrompt, KindUnknownOrResolved},
		{ErrUserCancelled, KindUserCancelled},
		{ErrBatchLimitExceeded, KindBatchLimitExceeded},
		{ErrERPTransient, KindERPTransient},
		{ErrERPPermanent, KindERPPermanent},
		{ErrRateLimitedUpstream, KindRateLimitedUpstream},
		{ErrMaxIterationsExceeded, KindMaxIterationsExceeded},
	} {
		if errors.Is(err, kind.sentinel) {
			return Frame{Code: string(kind.kind), Message: err.Error()}
		}
	}
	return Frame{Code: string(KindInternal), Message: "internal error"}
}
