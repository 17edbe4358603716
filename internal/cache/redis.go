package cache

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// redisPrefix namespaces cache keys away from other users of the same
// Redis instance, such as the task queue.
const redisPrefix = "gamedata:cache:"

// Redis is a Store backed by a shared Redis instance, letting multiple
// API replicas serve one cache. Expiry is enforced by Redis.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing Redis client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Get implements Store. Transport errors are reported as misses; the
// caller falls back to the upstream either way.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool) {
	data, err := r.client.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	return &e, true
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisPrefix+key, data, ttl).Err()
}
