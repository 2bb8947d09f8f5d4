package forecaststore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

type entry struct {
	payload   forecast.Response
	expiresAt time.Time
}

// MemoryStore is an in-memory forecast cache for tests/dev.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get implements forecast.Store.
func (s *MemoryStore) Get(_ context.Context, key string) (forecast.Response, bool, error) {
	if key == "" {
		return forecast.Response{}, false, nil
	}
	s.mu.RLock()
	record, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return forecast.Response{}, false, nil
	}
	if s.expired(record.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return forecast.Response{}, false, nil
	}
	return record.payload, true, nil
}

// Save caches the response with optional TTL.
func (s *MemoryStore) Save(_ context.Context, key string, resp forecast.Response, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.entries[key] = entry{payload: resp, expiresAt: exp}
	return nil
}

func (s *MemoryStore) expired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(s.now())
}

var _ forecast.Store = (*MemoryStore)(nil)
