package rate

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often Admit opportunistically drops stale addresses.
const sweepEvery = 512

type attempt struct {
	at         time.Time
	identifier string
}

// MemoryStore keeps attempt histories in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	history map[string][]attempt
	admits  int
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]attempt),
		now:     time.Now,
	}
}

// Admit implements AttemptStore.
func (s *MemoryStore) Admit(_ context.Context, addr, identifier string, window time.Duration, ceiling int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := pruneBefore(s.history[addr], now.Add(-window))

	if len(pruned) >= ceiling {
		s.history[addr] = pruned
		return false, nil
	}

	s.history[addr] = append(pruned, attempt{at: now, identifier: identifier})

	s.admits++
	if s.admits%sweepEvery == 0 {
		s.sweepLocked(now.Add(-window))
	}
	return true, nil
}

// Sweep implements AttemptStore.
func (s *MemoryStore) Sweep(_ context.Context, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now().Add(-window))
	return nil
}

func (s *MemoryStore) sweepLocked(cutoff time.Time) {
	for addr, attempts := range s.history {
		pruned := pruneBefore(attempts, cutoff)
		if len(pruned) == 0 {
			delete(s.history, addr)
		} else {
			s.history[addr] = pruned
		}
	}
}

func pruneBefore(attempts []attempt, cutoff time.Time) []attempt {
	kept := attempts[:0]
	for _, a := range attempts {
		if a.at.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}
