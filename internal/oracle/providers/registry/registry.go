// Package registry matches the claimed owner against the property registry.
package registry

import (
	"context"
	"fmt"
	"time"

	"proptoken/internal/oracle/models"
	"proptoken/internal/oracle/providers"
)

const DefaultConfidence = 0.88

type Provider struct {
	confidence float64
	latency    time.Duration
}

type Option func(*Provider)

func WithConfidence(c float64) Option {
	return func(p *Provider) {
		p.confidence = providers.ClampConfidence(c)
	}
}

func WithLatency(d time.Duration) Option {
	return func(p *Provider) {
		p.latency = d
	}
}

func New(opts ...Option) *Provider {
	p := &Provider{confidence: DefaultConfidence}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Verify(ctx context.Context, q models.RegistryQuery) (*models.Evidence, error) {
	if err := providers.Settle(ctx, p.latency); err != nil {
		return nil, err
	}
	return &models.Evidence{
		Source: models.SourceRegistry,
		RawData: map[string]any{
			"registry_id":   q.RegistryID,
			"owner_name":    q.OwnerName,
			"city":          q.City,
			"record_status": "ACTIVE",
		},
		DerivedSignal: "Registry record found matching owner name",
		Confidence:    p.confidence,
		Explanation:   fmt.Sprintf("Registry entry %s in %s lists %s as owner", q.RegistryID, q.City, q.OwnerName),
	}, nil
}
