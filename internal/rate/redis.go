package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps attempt histories in Redis sorted sets so multiple
// instances share one window per address. Members are scored by attempt
// time; keys expire one window after the last admitted attempt.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a store keeping histories under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "lra"
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(addr string) string {
	return s.prefix + ":" + addr
}

// Admit implements AttemptStore with a WATCH/MULTI transaction so the
// prune-count-append sequence is atomic per address.
func (s *RedisStore) Admit(ctx context.Context, addr, identifier string, window time.Duration, ceiling int) (bool, error) {
	const maxRetries = 4
	key := s.key(addr)

	for i := 0; i < maxRetries; i++ {
		var admitted bool

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			now := s.now()
			cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

			if err := tx.ZRemRangeByScore(ctx, key, "-inf", cutoff).Err(); err != nil {
				return err
			}
			count, err := tx.ZCard(ctx, key).Result()
			if err != nil {
				return err
			}
			if count >= int64(ceiling) {
				admitted = false
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.ZAdd(ctx, key, redis.Z{
					Score:  float64(now.UnixNano()),
					Member: identifier + ":" + uuid.NewString(),
				})
				pipe.Expire(ctx, key, window)
				return nil
			})
			if err != nil {
				return err
			}
			admitted = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return admitted, nil
	}

	// Contention exhausted the retry budget; refuse rather than overshoot
	// the ceiling.
	return false, nil
}

// Sweep implements AttemptStore. Redis keys expire on their own.
func (s *RedisStore) Sweep(context.Context, time.Duration) error {
	return nil
}
