package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisUserLocker serializes deduplication sweeps per user with a SET NX
// lock. The TTL bounds how long a crashed sweep can hold the lock.
type RedisUserLocker struct {
	client *redis.Client
}

// NewRedisUserLocker creates a locker on an existing Redis client.
func NewRedisUserLocker(client *redis.Client) *RedisUserLocker {
	return &RedisUserLocker{client: client}
}

func lockKey(userID string) string {
	return fmt.Sprintf("dedup:lock:%s", userID)
}

// Acquire takes the per-user sweep lock. Returns false when another sweep
// already holds it.
func (l *RedisUserLocker) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(userID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire dedup lock for user %s: %w", userID, err)
	}
	return ok, nil
}

// Release drops the per-user sweep lock. Runs even when the caller's context
// was already cancelled so a failed sweep does not pin the lock for its full
// TTL.
func (l *RedisUserLocker) Release(ctx context.Context, userID string) error {
	if err := l.client.Del(context.WithoutCancel(ctx), lockKey(userID)).Err(); err != nil {
		return fmt.Errorf("release dedup lock for user %s: %w", userID, err)
	}
	return nil
}
