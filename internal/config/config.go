// Package config loads gateway configuration from the environment (spec
// §6.4). Parsing is explicit and typed rather than reflection-driven: each
// field is read, validated, and defaulted by name.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-tunable knob the gateway reads at startup.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string
	// ERPBaseURL is the base URL of the ERP REST backend.
	ERPBaseURL string
	// AnthropicAPIKey authenticates the LLM completion provider.
	AnthropicAPIKey string
	// RedisAddr, when non-empty, selects Redis-backed checkpoint/idempotency
	// stores instead of the in-memory defaults.
	RedisAddr string

	// MaxIterations bounds the agent loop (spec §4.5, §3 invariant 8).
	MaxIterations int
	// RateLimitPerSec is both bucket capacity C and refill rate R for the
	// ERP adapter's token bucket (spec §4.1).
	RateLimitPerSec int
	// BulkMaxBatch caps bulk_update request size (spec §4.1).
	BulkMaxBatch int
	// IdempotencyTTL is how long a cached write result is reused.
	IdempotencyTTL time.Duration
	// SessionIdleTimeout is the idle threshold after which a session is swept.
	SessionIdleTimeout time.Duration
	// KeepAlive is the SSE keep-alive comment interval.
	KeepAlive time.Duration
	// WorkflowStateTTL is the checkpoint lifetime (spec §3, WorkflowInstance).
	WorkflowStateTTL time.Duration
}

// FromEnv builds a Config from the process environment, applying the
// defaults listed in spec §6.4 for anything unset.
func FromEnv() Config {
	return Config{
		ListenAddr:      getString("LISTEN_ADDR", ":8080"),
		ERPBaseURL:      getString("ERP_BASE_URL", ""),
		AnthropicAPIKey: getString("ANTHROPIC_API_KEY", ""),
		RedisAddr:       getString("REDIS_ADDR", ""),

		MaxIterations:   getInt("MAX_ITERATIONS", 10),
		RateLimitPerSec: getInt("RATE_LIMIT_PER_SEC", 10),
		BulkMaxBatch:    getInt("BULK_MAX_BATCH", 50),

		IdempotencyTTL:     getMillis("IDEMPOTENCY_TTL_MS", 300_000),
		SessionIdleTimeout: getMillis("SESSION_IDLE_TIMEOUT_MS", 1_800_000),
		KeepAlive:          getMillis("KEEP_ALIVE_MS", 30_000),
		WorkflowStateTTL:   getMillis("WORKFLOW_STATE_TTL_MS", 86_400_000),
	}
}

func getString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func getInt(name string, def int) int {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getMillis(name string, defMillis int64) time.Duration {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(defMillis) * time.Millisecond
}
