package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/frappe/erp-coagent-gateway/internal/config"
)

func TestFromEnvDefaults(t *testing.T) {
	c := config.FromEnv()
	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, 10, c.MaxIterations)
	assert.Equal(t, 10, c.RateLimitPerSec)
	assert.Equal(t, 50, c.BulkMaxBatch)
	assert.Equal(t, 5*time.Minute, c.IdempotencyTTL)
	assert.Equal(t, 30*time.Minute, c.SessionIdleTimeout)
	assert.Equal(t, 30*time.Second, c.KeepAlive)
	assert.Equal(t, 24*time.Hour, c.WorkflowStateTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("ERP_BASE_URL", "https://erp.example.com")
	t.Setenv("MAX_ITERATIONS", "25")
	t.Setenv("RATE_LIMIT_PER_SEC", "100")
	t.Setenv("BULK_MAX_BATCH", "5")
	t.Setenv("IDEMPOTENCY_TTL_MS", "1000")
	t.Setenv("SESSION_IDLE_TIMEOUT_MS", "2000")
	t.Setenv("KEEP_ALIVE_MS", "3000")
	t.Setenv("WORKFLOW_STATE_TTL_MS", "4000")

	c := config.FromEnv()
	assert.Equal(t, ":9090", c.ListenAddr)
	assert.Equal(t, "https://erp.example.com", c.ERPBaseURL)
	assert.Equal(t, 25, c.MaxIterations)
	assert.Equal(t, 100, c.RateLimitPerSec)
	assert.Equal(t, 5, c.BulkMaxBatch)
	assert.Equal(t, time.Second, c.IdempotencyTTL)
	assert.Equal(t, 2*time.Second, c.SessionIdleTimeout)
	assert.Equal(t, 3*time.Second, c.KeepAlive)
	assert.Equal(t, 4*time.Second, c.WorkflowStateTTL)
}

func TestFromEnvIgnoresMalformedIntFallsBackToDefault(t *testing.T) {
	t.Setenv("MAX_ITERATIONS", "not-a-number")
	c := config.FromEnv()
	assert.Equal(t, 10, c.MaxIterations)
}
