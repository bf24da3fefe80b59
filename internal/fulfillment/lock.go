package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes sync attempts for one order. It is a fast-path guard
// against duplicate webhook deliveries racing each other; the conditional
// write on carrier_order_id remains the hard guarantee, so a lost or
// unavailable lock degrades safety to wasted work, not duplication.
type Locker interface {
	Acquire(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, orderID string)
}

type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func lockKey(orderID string) string {
	return fmt.Sprintf("order_sync:%s", orderID)
}

func (l *RedisLocker) Acquire(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	acquired, err := l.rdb.SetNX(ctx, lockKey(orderID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock error: %w", err)
	}
	return acquired, nil
}

func (l *RedisLocker) Release(ctx context.Context, orderID string) {
	l.rdb.Del(ctx, lockKey(orderID))
}
