package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one-time secrets in Redis so multiple instances share
// them. Expiry rides on the key TTL; Consume runs a WATCH/MULTI transaction
// so compare-and-delete is atomic per key.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store keeping secrets under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key, secret string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(key), secret, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, key, secret string) (bool, error) {
	const maxRetries = 4
	redisKey := s.key(key)

	for i := 0; i < maxRetries; i++ {
		var matched bool

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.Get(ctx, redisKey).Result()
			if err != nil {
				return err
			}

			if subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) != 1 {
				matched = false
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, redisKey)
				return nil
			})
			if err != nil {
				return err
			}
			matched = true
			return nil
		}, redisKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, nil
			}
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return matched, nil
	}

	// Contention exhausted the retry budget; the caller sees a mismatch
	// and the record stays consumable.
	return false, nil
}
