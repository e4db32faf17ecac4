package erp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyCache persists write-operation results in Redis so the
// cache survives process restarts and is shared across gateway instances
// that front the same ERP session token. Keys carry a TTL set via SET...EX,
// mirroring the registry service's pattern of setting a Redis TTL alongside
// a stream key (see the teacher's registry.Service.setResultStreamTTL).
type RedisIdempotencyCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisIdempotencyCache constructs a Redis-backed IdempotencyCache.
func NewRedisIdempotencyCache(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyCache {
	return &RedisIdempotencyCache{rdb: rdb, ttl: ttl, prefix: "erp:idempotency:"}
}

// Get implements IdempotencyCache.
func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(v), true, nil
}

// Put implements IdempotencyCache.
func (c *RedisIdempotencyCache) Put(ctx context.Context, key string, result json.RawMessage) error {
	return c.rdb.Set(ctx, c.prefix+key, []byte(result), c.ttl).Err()
}
