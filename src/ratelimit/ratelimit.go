/*
Package ratelimit counts requests per client in fixed one-minute windows kept in
Redis. It guards the public form endpoints. Without Redis there is no limit.
*/
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/utils"
	"github.com/redis/go-redis/v9"
)

const Window = time.Minute

type Limiter interface {
	// Allow records one request for key and reports whether it is within the
	// limit. On error the request should be let through.
	Allow(ctx context.Context, key string) (bool, error)
}

type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	prefix string
	now    func() time.Time
}

// New returns nil when Redis is not configured. A nil *RedisLimiter allows
// everything.
func New(cfg config.RedisConfig) *RedisLimiter {
	if !cfg.Configured() {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.LimitPerMinute)
}

func NewWithClient(rdb *redis.Client, limitPerMinute int) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		limit:  int64(utils.OrDefault(limitPerMinute, 10)),
		prefix: "lumina:ratelimit",
		now:    time.Now,
	}
}

func (l *RedisLimiter) windowKey(key string) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, l.now().Unix()/int64(Window/time.Second))
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}

	wk := l.windowKey(key)
	count, err := l.rdb.Incr(ctx, wk).Result()
	if err != nil {
		return true, oops.New(err, "failed to count request")
	}
	if count == 1 {
		// A little past the window so a slow clock never resets a live count.
		if err := l.rdb.PExpire(ctx, wk, Window+time.Second).Err(); err != nil {
			return true, oops.New(err, "failed to set rate limit expiry")
		}
	}
	return count <= l.limit, nil
}

func (l *RedisLimiter) Ping(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.rdb.Ping(ctx).Err()
}

func (l *RedisLimiter) Close() error {
	if l == nil {
		return nil
	}
	return l.rdb.Close()
}
