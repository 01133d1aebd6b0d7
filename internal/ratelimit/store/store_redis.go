package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"proptoken/internal/ratelimit/models"
)

const keyPrefix = "ratelimit:"

// slidingWindowScript trims the window, then admits the request when there is
// room. Scores are unix milliseconds. Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #first > 0 then
  oldest = tonumber(first[2])
end

if count >= limit then
  return {0, count, oldest}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, oldest}
`)

// RedisStore shares sliding windows across instances. The check and the
// admission run in one script so concurrent callers cannot overshoot.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	raw, err := slidingWindowScript.Run(ctx, s.client, []string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply %v", raw)
	}

	oldest := time.UnixMilli(raw[2])
	if raw[0] == 0 {
		return models.Deny(limit, oldest, window, now), nil
	}
	return models.Allow(limit, int(raw[1]), oldest, window), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
