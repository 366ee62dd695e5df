package policy

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is the narrow storage interface FetchPolicy uses. Implementations
// must be safe for concurrent use. The default is an in-process Cache; a
// Redis-backed Cache is available for multi-instance deployments that need
// a shared cache (see NewRedisCache).
type Cache interface {
	Get(ctx context.Context, token string) (CacheEntry, bool, error)
	Set(ctx context.Context, entry CacheEntry) error
	Delete(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// MemCache is a process-local, TTL-aware Cache backed by a mutex-protected
// map. It is the default Cache for single-instance deployments.
type MemCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	now     func() time.Time
}

// NewMemCache creates an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{
		entries: make(map[string]CacheEntry),
		now:     time.Now,
	}
}

func (c *MemCache) Get(_ context.Context, token string) (CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[token]
	if !ok {
		return CacheEntry{}, false, nil
	}
	if e.Expired(c.now()) {
		return CacheEntry{}, false, nil
	}
	return e, true, nil
}

func (c *MemCache) Set(_ context.Context, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Token] = entry
	return nil
}

func (c *MemCache) Delete(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	return nil
}

func (c *MemCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CacheEntry)
	return nil
}

func (c *MemCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// redisEntry is the JSON wire shape stored in Redis; CacheEntry's TTL is
// kept explicit rather than relying solely on the key's own Redis TTL, so
// that Expired() produces identical semantics across both Cache backends.
type redisEntry struct {
	Policy    Policy    `json:"policy"`
	FetchedAt time.Time `json:"fetchedAt"`
	TTLMs     int64     `json:"ttlMs"`
}

// RedisClient is the narrow subset of *redis.Client RedisCache depends on,
// letting callers inject a real github.com/redis/go-redis/v9 client without
// this package importing it directly in the interface surface it exports
// for testing.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisCache is a shared Cache backed by Redis, for deployments running
// more than one executor-server instance against the same policy service.
type RedisCache struct {
	client    RedisClient
	keyPrefix string
}

// NewRedisCache wraps an already-connected RedisClient.
func NewRedisCache(client RedisClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "execpolicy:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) key(token string) string {
	return c.keyPrefix + token
}

func (c *RedisCache) Get(ctx context.Context, token string) (CacheEntry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(token))
	if err != nil {
		return CacheEntry{}, false, nil
	}
	if raw == "" {
		return CacheEntry{}, false, nil
	}
	var re redisEntry
	if err := json.Unmarshal([]byte(raw), &re); err != nil {
		return CacheEntry{}, false, err
	}
	entry := CacheEntry{Token: token, Policy: re.Policy, FetchedAt: re.FetchedAt, TTL: time.Duration(re.TTLMs) * time.Millisecond}
	if entry.Expired(time.Now()) {
		return CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, entry CacheEntry) error {
	re := redisEntry{Policy: entry.Policy, FetchedAt: entry.FetchedAt, TTLMs: entry.TTL.Milliseconds()}
	raw, err := json.Marshal(re)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(entry.Token), string(raw), entry.TTL)
}

func (c *RedisCache) Delete(ctx context.Context, token string) error {
	return c.client.Del(ctx, c.key(token))
}

func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.client.Keys(ctx, c.keyPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...)
}

func (c *RedisCache) Len(ctx context.Context) (int, error) {
	keys, err := c.client.Keys(ctx, c.keyPrefix+"*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
