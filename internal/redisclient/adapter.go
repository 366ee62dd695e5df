// Package redisclient adapts *redis.Client to policy.RedisClient, giving
// the optional shared policy cache a concrete backend without the policy
// package itself importing go-redis.
package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Adapter implements policy.RedisClient over a real *redis.Client.
type Adapter struct {
	client *redis.Client
}

// New connects to addr and wraps the resulting client.
func New(addr string) *Adapter {
	return &Adapter{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	v, err := a.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (a *Adapter) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return a.client.Set(ctx, key, value, ttl).Err()
}

func (a *Adapter) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return a.client.Del(ctx, keys...).Err()
}

func (a *Adapter) Keys(ctx context.Context, pattern string) ([]string, error) {
	return a.client.Keys(ctx, pattern).Result()
}

// Close releases the underlying connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}
