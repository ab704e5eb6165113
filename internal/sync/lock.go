package sync

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes sync operations across replicas with SetNX leases.
type RedisLocker struct {
	Rdb *redis.Client
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.Rdb.SetNX(ctx, key, "1", ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) {
	l.Rdb.Del(ctx, key)
}
