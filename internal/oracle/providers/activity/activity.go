// Package activity scores commercial activity around the declared address.
package activity

import (
	"context"
	"fmt"
	"time"

	"proptoken/internal/oracle/models"
	"proptoken/internal/oracle/providers"
)

const DefaultConfidence = 0.78

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

func (p *Provider) Verify(ctx context.Context, q models.ActivityQuery) (*models.Evidence, error) {
	if err := providers.Settle(ctx, p.latency); err != nil {
		return nil, err
	}
	return &models.Evidence{
		Source: models.SourceActivity,
		RawData: map[string]any{
			"address": q.Address,
			"city":    q.City,
			"zone":    "commercial",
		},
		DerivedSignal: "High activity commercial zone",
		Confidence:    p.confidence,
		Explanation:   fmt.Sprintf("Footfall and listing signals around %s indicate an active commercial zone", q.Address),
	}, nil
}
