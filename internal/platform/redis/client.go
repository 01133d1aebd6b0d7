// Package redis opens the go-redis client shared by the run locker, the
// registry evidence cache and the submission rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"proptoken/internal/platform/config"
)

const defaultPingTimeout = 2 * time.Second

// Client is nil when Redis is not configured; callers then fall back to their
// in-memory implementations.
type Client struct {
	*redis.Client
}

func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	client := &Client{Client: redis.NewClient(opts)}
	if err := client.Health(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return opts, nil
}

// Health pings within the dial timeout so /healthz cannot hang on a stalled
// connection.
func (c *Client) Health(ctx context.Context) error {
	timeout := c.Options().DialTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.Options().Addr, err)
	}
	return nil
}
