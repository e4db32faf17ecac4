package erp

import (
	"golang.org/x/time/rate"
)

// newLimiter builds a token-bucket limiter with capacity C and refill rate R
// tokens/sec, matching spec §4.1: "refill by elapsed*R (capped at C), then
// either consume one token or await the shortfall". golang.org/x/time/rate
// implements exactly this algorithm; Wait serializes awaits so fairness is
// first-come-first-served, as required.
func newLimiter(capacity, refillPerSec int) *rate.Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if refillPerSec <= 0 {
		refillPerSec = 1
	}
	return rate.NewLimiter(rate.Limit(refillPerSec), capacity)
}
