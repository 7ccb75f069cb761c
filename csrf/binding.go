package csrf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// purgeEvery bounds how often the in-memory binding sweeps expired entries.
const purgeEvery = 512

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryBinding keeps token bindings in process memory. Suitable for
// single-instance deployments and tests.
type MemoryBinding struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
	now     func() time.Time
}

// NewMemoryBinding returns an empty in-process binding.
func NewMemoryBinding() *MemoryBinding {
	return &MemoryBinding{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Bind binds token to session, replacing any prior binding.
func (b *MemoryBinding) Bind(_ context.Context, session, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[session] = memoryEntry{token: token, expires: b.now().Add(ttl)}

	b.writes++
	if b.writes%purgeEvery == 0 {
		b.purgeLocked()
	}
	return nil
}

// Token returns the live token bound to session, or "".
func (b *MemoryBinding) Token(_ context.Context, session string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[session]
	if !ok {
		return "", nil
	}
	if b.now().After(entry.expires) {
		delete(b.entries, session)
		return "", nil
	}
	return entry.token, nil
}

func (b *MemoryBinding) purgeLocked() {
	now := b.now()
	for session, entry := range b.entries {
		if now.After(entry.expires) {
			delete(b.entries, session)
		}
	}
}

// RedisBinding keeps token bindings in Redis so multiple instances share
// them. Keys expire with the binding TTL.
type RedisBinding struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisBinding returns a binding storing tokens under prefix.
func NewRedisBinding(client redis.UniversalClient, prefix string) *RedisBinding {
	if prefix == "" {
		prefix = "csrf"
	}
	return &RedisBinding{redis: client, prefix: prefix}
}

func (b *RedisBinding) key(session string) string {
	return b.prefix + ":" + session
}

// Bind binds token to session, replacing any prior binding.
func (b *RedisBinding) Bind(ctx context.Context, session, token string, ttl time.Duration) error {
	if err := b.redis.Set(ctx, b.key(session), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Token returns the live token bound to session, or "".
func (b *RedisBinding) Token(ctx context.Context, session string) (string, error) {
	token, err := b.redis.Get(ctx, b.key(session)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}
