package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle tracks failed logins per username.
type LoginThrottle interface {
	Locked(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

// RedisLoginThrottle counts failures in Redis with a sliding TTL window.
// Once maxFailures is reached the username stays locked until the key expires.
type RedisLoginThrottle struct {
	client      redis.Cmdable
	maxFailures int
	window      time.Duration
}

// NewRedisLoginThrottle constructs a throttle. maxFailures <= 0 disables locking.
func NewRedisLoginThrottle(client redis.Cmdable, maxFailures int, window time.Duration) *RedisLoginThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLoginThrottle{client: client, maxFailures: maxFailures, window: window}
}

func failureKey(username string) string {
	return "login:failures:" + username
}

func (t *RedisLoginThrottle) Locked(ctx context.Context, username string) (bool, error) {
	if t.maxFailures <= 0 {
		return false, nil
	}
	n, err := t.client.Get(ctx, failureKey(username)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= t.maxFailures, nil
}

func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, username string) error {
	if t.maxFailures <= 0 {
		return nil
	}
	key := failureKey(username)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, t.window)
		return nil
	})
	return err
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, username string) error {
	return t.client.Del(ctx, failureKey(username)).Err()
}

// noopThrottle never locks.
type noopThrottle struct{}

func (noopThrottle) Locked(context.Context, string) (bool, error) { return false, nil }
func (noopThrottle) RecordFailure(context.Context, string) error  { return nil }
func (noopThrottle) Reset(context.Context, string) error          { return nil }
