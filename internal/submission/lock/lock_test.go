package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"proptoken/internal/submission/lock"
	"proptoken/pkg/platform/sentinel"
)

type locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

type LockerSuite struct {
	suite.Suite
	setup   func(t *testing.T) (locker, func(time.Duration))
	locker  locker
	advance func(time.Duration)
}

func TestInMemoryLocker(t *testing.T) {
	suite.Run(t, &LockerSuite{setup: func(*testing.T) (locker, func(time.Duration)) {
		var mu sync.Mutex
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		l := lock.NewInMemory().WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		})
		return l, func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		}
	}})
}

func TestRedisLocker(t *testing.T) {
	suite.Run(t, &LockerSuite{setup: func(t *testing.T) (locker, func(time.Duration)) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return lock.NewRedis(client), mr.FastForward
	}})
}

func (s *LockerSuite) SetupTest() {
	s.locker, s.advance = s.setup(s.T())
}

func (s *LockerSuite) TestSingleOwner() {
	ctx := context.Background()
	token, err := s.locker.Acquire(ctx, "sub-1", time.Minute)
	s.Require().NoError(err)
	s.NotEmpty(token)

	_, err = s.locker.Acquire(ctx, "sub-1", time.Minute)
	s.ErrorIs(err, sentinel.ErrLockHeld)

	_, err = s.locker.Acquire(ctx, "sub-2", time.Minute)
	s.NoError(err, "keys are independent")

	s.Require().NoError(s.locker.Release(ctx, "sub-1", token))
	_, err = s.locker.Acquire(ctx, "sub-1", time.Minute)
	s.NoError(err, "released lock can be retaken")
}

func (s *LockerSuite) TestReleaseRequiresOwnership() {
	ctx := context.Background()
	token, err := s.locker.Acquire(ctx, "sub-1", time.Minute)
	s.Require().NoError(err)

	s.ErrorIs(s.locker.Release(ctx, "sub-1", "someone-else"), sentinel.ErrNotFound)

	_, err = s.locker.Acquire(ctx, "sub-1", time.Minute)
	s.ErrorIs(err, sentinel.ErrLockHeld, "foreign release must not drop the lease")

	s.NoError(s.locker.Release(ctx, "sub-1", token))
	s.ErrorIs(s.locker.Release(ctx, "sub-1", token), sentinel.ErrNotFound)
}

func (s *LockerSuite) TestExpiredLeaseIsTakenOver() {
	ctx := context.Background()
	stale, err := s.locker.Acquire(ctx, "sub-1", time.Second)
	s.Require().NoError(err)

	s.advance(2 * time.Second)

	fresh, err := s.locker.Acquire(ctx, "sub-1", time.Minute)
	s.Require().NoError(err)
	s.NotEqual(stale, fresh)

	s.ErrorIs(s.locker.Release(ctx, "sub-1", stale), sentinel.ErrNotFound)
	s.NoError(s.locker.Release(ctx, "sub-1", fresh))
}

func (s *LockerSuite) TestConcurrentAcquireHasOneWinner() {
	ctx := context.Background()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.locker.Acquire(ctx, "contended", time.Minute); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}
