package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrTokenInvalid = errors.New("invalid or expired token")

// Store 基于 Redis 的一次性令牌，用于 OAuth state 与密码重置
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Issue 生成 32 字节随机令牌并保存关联值
func (s *Store) Issue(ctx context.Context, value string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.rdb.Set(ctx, s.prefix+token, value, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Consume 校验并删除令牌，返回关联值，同一令牌只能使用一次
func (s *Store) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}

	key := s.prefix + token
	var value string
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		value = val

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		// 并发消费时输掉 WATCH 的一方视为令牌已被使用
		if errors.Is(err, redis.TxFailedErr) {
			return "", ErrTokenInvalid
		}
		return "", err
	}

	return value, nil
}
