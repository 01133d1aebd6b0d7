package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"proptoken/pkg/platform/sentinel"
)

// releaseScript deletes the key only when the caller still owns it, so a run
// that outlived its TTL cannot drop a lease taken over by another process.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements the run lock with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, KeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return "", sentinel.ErrLockHeld
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{KeyPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
