package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ratelimit:"

// 首次计数时设置过期，计数与过期在同一脚本内完成
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// Result 单次判定结果
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter 基于 Redis 的固定窗口限流
type Limiter struct {
	rdb *redis.Client
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Allow 在 window 内对 key 计数，超过 limit 时拒绝
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{Allowed: true, Remaining: limit}, nil
	}

	raw, err := fixedWindowScript.Run(ctx, l.rdb, []string{keyPrefix + key}, window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, raw)
	}
	count, _ := values[0].(int64)
	ttlMillis, _ := values[1].(int64)

	wait := time.Duration(ttlMillis) * time.Millisecond
	if wait <= 0 {
		wait = window
	}

	if int(count) > limit {
		return Result{Allowed: false, Remaining: 0, RetryAfter: wait}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(count)}, nil
}
