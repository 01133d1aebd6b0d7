package cache

import (
	"context"
	"sync"
	"time"

	"proptoken/internal/oracle/models"
	"proptoken/pkg/platform/sentinel"
)

type cachedEvidence struct {
	evidence models.Evidence
	storedAt time.Time
}

// InMemoryStore is a TTL cache for registry evidence.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]cachedEvidence
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]cachedEvidence),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores a copy of ev. A nil evidence is a no-op.
func (s *InMemoryStore) Save(_ context.Context, key string, ev *models.Evidence) error {
	if ev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cachedEvidence{evidence: *ev, storedAt: s.now()}
	return nil
}

// Find returns sentinel.ErrNotFound when the key is absent or older than the TTL.
func (s *InMemoryStore) Find(_ context.Context, key string) (*models.Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cached, ok := s.entries[key]; ok {
		if s.now().Sub(cached.storedAt) < s.ttl {
			ev := cached.evidence
			return &ev, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
