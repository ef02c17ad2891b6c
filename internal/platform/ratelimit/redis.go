package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisBackend counts hits with INCR and PTTL in one transaction, setting
// the window expiry on the first hit or when the key has lost its TTL.
type RedisBackend struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisBackend(client redis.Cmdable) *RedisBackend {
	return &RedisBackend{client: client, now: time.Now}
}

// NewRedisClient parses a redis:// or rediss:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Check(ctx context.Context, p Params) (Result, error) {
	key := redisKeyPrefix + p.Key

	pipe := b.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("redis incr %s: %w", key, err)
	}

	count := incr.Val()
	ttl := pttl.Val()
	if count == 1 || ttl < 0 {
		if err := b.client.PExpire(ctx, key, p.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("redis pexpire %s: %w", key, err)
		}
		ttl = p.Window
	}

	return result(count, p.Limit, b.now().Add(ttl)), nil
}
