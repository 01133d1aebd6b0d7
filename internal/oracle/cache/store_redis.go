package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"proptoken/internal/oracle/models"
	"proptoken/pkg/platform/sentinel"
)

const registryKeyPrefix = "oracle:registry:"

// RedisStore shares registry evidence across instances. Expiry is left to Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, key string, ev *models.Evidence) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode registry evidence: %w", err)
	}
	return s.client.Set(ctx, registryKeyPrefix+key, payload, s.ttl).Err()
}

func (s *RedisStore) Find(ctx context.Context, key string) (*models.Evidence, error) {
	payload, err := s.client.Get(ctx, registryKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ev models.Evidence
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode registry evidence: %w", err)
	}
	return &ev, nil
}
