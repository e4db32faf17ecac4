package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists checkpoint chains in Redis (spec §6.5: "a Redis hash
// per thread_id holding an ordered list of checkpoints, with ZADD-based
// secondary ordering by created_at for 'latest checkpoint' lookups").
// Grounded on erp.RedisIdempotencyCache's key-prefix and TTL conventions.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed checkpoint.Store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "workflow:checkpoints:"}
}

func (s *RedisStore) hashKey(threadID string) string { return s.prefix + threadID + ":hash" }
func (s *RedisStore) zsetKey(threadID string) string { return s.prefix + threadID + ":order" }

func (s *RedisStore) Append(ctx context.Context, cp Checkpoint) error {
	latest, ok, err := s.Latest(ctx, cp.ThreadID)
	if err != nil {
		return err
	}
	if ok {
		if cp.ParentID != latest.ID {
			return ErrParentMismatch
		}
	} else if cp.ParentID != "" {
		return ErrParentMismatch
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.hashKey(cp.ThreadID), cp.ID, data)
	pipe.ZAdd(ctx, s.zsetKey(cp.ThreadID), redis.Z{Score: float64(cp.CreatedAt.UnixNano()), Member: cp.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Latest(ctx context.Context, threadID string) (Checkpoint, bool, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.zsetKey(threadID), 0, 0).Result()
	if err != nil {
		return Checkpoint{}, false, err
	}
	if len(ids) == 0 {
		return Checkpoint{}, false, nil
	}
	data, err := s.rdb.HGet(ctx, s.hashKey(threadID), ids[0]).Bytes()
	if err == redis.Nil {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	return cp, true, nil
}
