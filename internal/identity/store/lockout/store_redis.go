// Package lockout tracks failed login attempts per identity inside a rolling
// window, backing the brute-force guard on Login.
package lockout

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	dErrors "identityd/pkg/domain-errors"
)

const failureKeyPrefix = "login_fail:"

// RedisStore counts failures in Redis so lockout state is shared across
// instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RecordFailure increments the counter and starts the window on the first
// failure. Later failures do not extend the window, so a lockout always
// lapses.
func (s *RedisStore) RecordFailure(ctx context.Context, identity string, window time.Duration) (int, error) {
	key := failureKeyPrefix + identity
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "lockout store incr failed")
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeTransient, "lockout store expire failed")
		}
	}
	return int(count), nil
}

func (s *RedisStore) Failures(ctx context.Context, identity string) (int, error) {
	raw, err := s.client.Get(ctx, failureKeyPrefix+identity).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransient, "lockout store read failed")
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return count, nil
}

func (s *RedisStore) Clear(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, failureKeyPrefix+identity).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTransient, "lockout store delete failed")
	}
	return nil
}
