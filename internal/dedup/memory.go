package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/sla-service/internal/clock"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local Store with expiry, used by tests and
// single-instance development runs.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]entry
}

// NewMemoryStore builds an empty store reading time from c.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{clock: c, entries: make(map[string]entry)}
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, key, value string, ttl time.Duration) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if e, ok := s.entries[key]; ok && (e.expiresAt.IsZero() || now.Before(e.expiresAt)) {
		return false, e.value, nil
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
	return true, value, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
