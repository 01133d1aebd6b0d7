// Package cache memoizes registry evidence. Registry lookups are the only probe
// backed by a slow external record, so repeated verifications of the same claim
// within the TTL reuse the stored evidence.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"proptoken/internal/oracle/metrics"
	"proptoken/internal/oracle/models"
	"proptoken/pkg/platform/sentinel"
)

// Store persists registry evidence keyed by query.
type Store interface {
	Find(ctx context.Context, key string) (*models.Evidence, error)
	Save(ctx context.Context, key string, ev *models.Evidence) error
}

type RegistryProvider interface {
	Verify(ctx context.Context, q models.RegistryQuery) (*models.Evidence, error)
}

// CachingRegistry decorates a registry provider with a read-through cache.
// Cache failures never fail a verification; they fall through to the provider.
type CachingRegistry struct {
	next    RegistryProvider
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*CachingRegistry)

func WithLogger(logger *slog.Logger) Option {
	return func(c *CachingRegistry) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *CachingRegistry) {
		c.metrics = m
	}
}

func NewCachingRegistry(next RegistryProvider, store Store, opts ...Option) *CachingRegistry {
	c := &CachingRegistry{next: next, store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachingRegistry) Verify(ctx context.Context, q models.RegistryQuery) (*models.Evidence, error) {
	key := Key(q)

	cached, err := c.store.Find(ctx, key)
	switch {
	case err == nil:
		c.metrics.IncrementCacheHit()
		return cached, nil
	case errors.Is(err, sentinel.ErrNotFound):
		c.metrics.IncrementCacheMiss()
	default:
		c.metrics.IncrementCacheMiss()
		c.warn(ctx, "registry cache read failed", key, err)
	}

	ev, err := c.next.Verify(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, key, ev); err != nil {
		c.warn(ctx, "registry cache write failed", key, err)
	}
	return ev, nil
}

func (c *CachingRegistry) warn(ctx context.Context, msg, key string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "key", key, "error", err)
	}
}

// Key is case-insensitive on owner and city so trivially different spellings share an entry.
func Key(q models.RegistryQuery) string {
	return strings.Join([]string{
		strings.TrimSpace(q.RegistryID),
		strings.ToLower(strings.TrimSpace(q.OwnerName)),
		strings.ToLower(strings.TrimSpace(q.City)),
	}, "|")
}
