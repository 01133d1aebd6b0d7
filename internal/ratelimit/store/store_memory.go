package store

import (
	"context"
	"sync"
	"time"

	"proptoken/internal/ratelimit/models"
)

// InMemoryStore keeps a sliding window of admission times per key. It is
// per-process; use RedisStore when several instances share a limit.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Tests only.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

// Allow admits one request for key when fewer than limit were admitted in
// the trailing window.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.cleanup(now, window)

	if len(sw.timestamps) >= limit {
		return models.Deny(limit, sw.timestamps[0], window, now), nil
	}
	sw.timestamps = append(sw.timestamps, now)
	return models.Allow(limit, len(sw.timestamps), sw.timestamps[0], window), nil
}

// Reset forgets every admission for key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// cleanup drops admissions at or before now-window.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
