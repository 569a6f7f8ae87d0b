package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the catalog snapshot is stored when no key is
// configured.
const DefaultRedisKey = "catalog:products"

// redisKV is the subset of the redis client the provider needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisProvider reads the product list from a JSON snapshot stored under one
// key. Another process owns the key and rewrites it when products change.
type RedisProvider struct {
	client redisKV
	key    string
}

func NewRedisProvider(client redisKV, key string) *RedisProvider {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisProvider{client: client, key: key}
}

// Products returns the stored list. A missing key is an empty catalog, not
// an error.
func (p *RedisProvider) Products(ctx context.Context) ([]Entry, error) {
	data, err := p.client.Get(ctx, p.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis GET %s: %w", p.key, err)
	}
	if data == "" {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot %s: %w", p.key, err)
	}
	return entries, nil
}

// Publish stores entries as the current snapshot without expiration.
func (p *RedisProvider) Publish(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode catalog snapshot: %w", err)
	}
	if err := p.client.Set(ctx, p.key, string(data), 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", p.key, err)
	}
	return nil
}
