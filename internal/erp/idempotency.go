package erp

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdempotencyCache stores write-operation results keyed by a digest of
// (method, doctype, payload) so retries within the TTL window are safe and
// make no second network call (spec §4.1, §8).
type IdempotencyCache interface {
	// Get returns the cached result for key, if present and unexpired.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Put stores result under key with the cache's configured TTL.
	Put(ctx context.Context, key string, result json.RawMessage) error
}

// Key derives the idempotency cache key for a write call: the namespace
// UUID followed by a base64 digest of (method, doctype, payload), the digest
// truncated to 32 characters as required by spec §4.1.
//
// The key is a pure function of its inputs: within one namespace, two calls
// with the same method, doctype, and payload get the same key and share one
// cache entry, while the same call under another namespace gets a different
// key. Each Client draws its own random namespace (see
// Client.IdempotencyKey), so keys from different Client instances never
// collide.
func Key(namespace uuid.UUID, method, doctype string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(doctype))
	h.Write([]byte{0})
	h.Write(payload)
	digest := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	if len(digest) > 32 {
		digest = digest[:32]
	}
	return namespace.String() + digest
}

type inmemEntry struct {
	result  json.RawMessage
	expires time.Time
}

// InMemoryIdempotencyCache is the default, process-local IdempotencyCache.
// Expired entries are swept inline, under the cache lock, on every Get and
// Put; there is no background goroutine.
type InMemoryIdempotencyCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]inmemEntry
}

// NewInMemoryIdempotencyCache constructs a cache with the given TTL.
func NewInMemoryIdempotencyCache(ttl time.Duration) *InMemoryIdempotencyCache {
	return &InMemoryIdempotencyCache{ttl: ttl, entries: make(map[string]inmemEntry)}
}

// Get implements IdempotencyCache.
func (c *InMemoryIdempotencyCache) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return e.result, true, nil
}

// Put implements IdempotencyCache.
func (c *InMemoryIdempotencyCache) Put(_ context.Context, key string, result json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	c.entries[key] = inmemEntry{result: result, expires: time.Now().Add(c.ttl)}
	return nil
}

// sweepLocked removes expired entries. Callers must hold c.mu.
func (c *InMemoryIdempotencyCache) sweepLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}
