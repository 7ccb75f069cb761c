package otp

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// purgeEvery bounds how often Put opportunistically drops expired records.
const purgeEvery = 256

type record struct {
	secret  string
	expires time.Time
}

// MemoryStore keeps one-time secrets in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]record
	puts    int
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]record),
		now:     time.Now,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key, secret string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = record{secret: secret, expires: s.now().Add(ttl)}

	s.puts++
	if s.puts%purgeEvery == 0 {
		s.purgeLocked()
	}
	return nil
}

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, key, secret string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false, nil
	}
	if s.now().After(rec.expires) {
		delete(s.records, key)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(rec.secret), []byte(secret)) != 1 {
		return false, nil
	}

	delete(s.records, key)
	return true, nil
}

func (s *MemoryStore) purgeLocked() {
	now := s.now()
	for key, rec := range s.records {
		if now.After(rec.expires) {
			delete(s.records, key)
		}
	}
}
