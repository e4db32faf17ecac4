package workflow

import (
	"context"
	"time"
)

// Operation is the side-effecting work a retry node wraps (spec §4.7 step
// 4: "wraps a child operation").
type Operation func(ctx context.Context, state map[string]any) (map[string]any, error)

// RetryNode builds a reusable node that runs op, retrying with exponential
// backoff base·2^n up to maxAttempts on failure, and transitioning to
// escalateTo once attempts are exhausted (spec §4.7 step 4). On success it
// transitions to onSuccess.
func RetryNode(op Operation, maxAttempts int, base time.Duration, onSuccess, escalateTo string) NodeFunc {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return func(n *NodeContext, state map[string]any) (Command, error) {
		var lastErr error
		for attempt := 0; attempt < maxAttempts; attempt++ {
			if attempt > 0 {
				delay := base * time.Duration(1<<uint(attempt-1))
				select {
				case <-time.After(delay):
				case <-n.Context().Done():
					return Command{}, n.Context().Err()
				}
			}
			update, err := op(n.Context(), state)
			if err == nil {
				return Command{Update: update, Goto: onSuccess}, nil
			}
			lastErr = err
			n.Logger().Warn(n.Context(), "workflow: retry attempt failed", "attempt", attempt+1, "max_attempts", maxAttempts, "error", err.Error())
		}
		return Command{
			Update: map[string]any{"retry_error": lastErr.Error()},
			Goto:   escalateTo,
		}, nil
	}
}
