package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"applytrack-utils/internal/config"
)

// RedisTier implements the fast tier on Redis. Entries expire through the
// TTL set on write; bulk invalidation walks the subject prefix with SCAN.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier creates a Redis-backed fast tier from configuration.
func NewRedisTier(cfg *config.Config) *RedisTier {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		// Fallback to default configuration
		opts = &redis.Options{
			Addr:     "localhost:6379",
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}

	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	return &RedisTier{client: redis.NewClient(opts)}
}

// NewRedisTierWithClient wraps an existing client, used by tests and by
// callers that share one connection pool.
func NewRedisTierWithClient(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

// Client exposes the underlying connection so other Redis-backed
// collaborators can share it.
func (t *RedisTier) Client() *redis.Client {
	return t.client
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := t.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (t *RedisTier) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return t.client.Set(ctx, key, value, ttl).Err()
}

func (t *RedisTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return t.client.Del(ctx, keys...).Err()
}

// DeleteByPrefix scans for keys under the prefix and deletes them in
// batches. SCAN is incremental so this stays safe against large keyspaces.
func (t *RedisTier) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := t.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := t.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return t.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Ping tests the Redis connection
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (t *RedisTier) Close() error {
	return t.client.Close()
}
