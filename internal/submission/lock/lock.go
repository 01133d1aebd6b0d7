// Package lock provides the per-submission run lock. Holding the lock is what
// makes a run the only active run for its submission, across processes when
// the Redis implementation is used.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"proptoken/pkg/platform/sentinel"
)

// KeyPrefix namespaces run lock keys.
const KeyPrefix = "proptoken:run:"

// InMemoryLocker is a process-local lock table with expiry.
type InMemoryLocker struct {
	mu   sync.Mutex
	held map[string]lease
	now  func() time.Time
}

type lease struct {
	token     string
	expiresAt time.Time
}

func NewInMemory() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]lease), now: time.Now}
}

// WithClock swaps the time source. Tests only.
func (l *InMemoryLocker) WithClock(now func() time.Time) *InMemoryLocker {
	l.now = now
	return l
}

// Acquire takes key for ttl and returns the owner token. A live lease held by
// anyone else yields sentinel.ErrLockHeld.
func (l *InMemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[KeyPrefix+key]; ok && now.Before(cur.expiresAt) {
		return "", sentinel.ErrLockHeld
	}
	token := uuid.NewString()
	l.held[KeyPrefix+key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release drops the lease only if token still owns it.
func (l *InMemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.held[KeyPrefix+key]
	if !ok || cur.token != token {
		return sentinel.ErrNotFound
	}
	delete(l.held, KeyPrefix+key)
	return nil
}
