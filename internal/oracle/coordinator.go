// Package oracle gathers provider evidence for a submission and turns it into
// per-category verdicts.
package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"proptoken/internal/oracle/metrics"
	"proptoken/internal/oracle/models"
	"proptoken/pkg/requestcontext"
)

const defaultProbeTimeout = 5 * time.Second

// Probe labels used in metrics and provider errors.
const (
	ProbeSatellite = "satellite"
	ProbeRegistry  = "registry"
	ProbeActivity  = "activity"
)

type SatelliteProvider interface {
	Verify(ctx context.Context, coords models.Coordinates) (*models.Evidence, error)
}

type RegistryProvider interface {
	Verify(ctx context.Context, q models.RegistryQuery) (*models.Evidence, error)
}

type ActivityProvider interface {
	Verify(ctx context.Context, q models.ActivityQuery) (*models.Evidence, error)
}

// Coordinator fans out to the evidence providers and composes the outcome.
// Verification is all-or-nothing: one failed probe fails the whole outcome.
type Coordinator struct {
	satellite SatelliteProvider
	registry  RegistryProvider
	activity  ActivityProvider
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithProbeTimeout bounds the whole probe fan-out.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewCoordinator(satellite SatelliteProvider, registry RegistryProvider, activity ActivityProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		satellite: satellite,
		registry:  registry,
		activity:  activity,
		timeout:   defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type gathered struct {
	satellite *models.Evidence
	registry  *models.Evidence
	activity  *models.Evidence
}

// Verify normalizes the claim, probes all providers concurrently and composes
// existence (satellite + activity), ownership (registry) and activity
// (raw activity passthrough) results.
func (c *Coordinator) Verify(ctx context.Context, claim models.Claim) (*models.Outcome, error) {
	start := time.Now()
	ctx, span := otel.Tracer("proptoken/oracle").Start(ctx, "oracle.Verify")
	span.SetAttributes(attribute.String("submission_id", claim.SubmissionID.String()))
	defer span.End()

	input := Normalize(claim)
	if len(input.Defaulted) > 0 && c.logger != nil {
		c.logger.WarnContext(ctx, "submission fields defaulted for oracle probes",
			"submission_id", claim.SubmissionID,
			"request_id", requestcontext.RequestID(ctx),
			"fields", input.Defaulted,
		)
	}

	ev, err := c.gather(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evidence gathering failed")
		return nil, err
	}

	existence, err := AggregateExistence(*ev.satellite, *ev.activity)
	if err != nil {
		return nil, err
	}
	ownership, err := AggregateOwnership(*ev.registry)
	if err != nil {
		return nil, err
	}

	outcome := &models.Outcome{
		SubmissionID: claim.SubmissionID,
		Existence:    existence,
		Ownership:    ownership,
		Activity:     activityPassthrough(*ev.activity),
		VerifiedAt:   requestcontext.Now(ctx),
	}
	c.metrics.ObserveVerifyLatency(time.Since(start))

	if c.logger != nil {
		c.logger.InfoContext(ctx, "oracle verification completed",
			"submission_id", claim.SubmissionID,
			"existence_score", outcome.Existence.Score,
			"ownership_score", outcome.Ownership.Score,
			"activity_score", outcome.Activity.Score,
		)
	}
	return outcome, nil
}

// gather runs the probes under a shared deadline with early cancellation on
// the first failure.
func (c *Coordinator) gather(ctx context.Context, input models.Normalized) (*gathered, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	ev := &gathered{}

	g.Go(func() error {
		res, err := probe(ctx, c, ProbeSatellite, func(ctx context.Context) (*models.Evidence, error) {
			return c.satellite.Verify(ctx, input.Coordinates)
		})
		ev.satellite = res
		return err
	})

	g.Go(func() error {
		res, err := probe(ctx, c, ProbeRegistry, func(ctx context.Context) (*models.Evidence, error) {
			return c.registry.Verify(ctx, models.RegistryQuery{
				RegistryID: input.RegistryID,
				OwnerName:  input.OwnerName,
				City:       input.City,
			})
		})
		ev.registry = res
		return err
	})

	g.Go(func() error {
		res, err := probe(ctx, c, ProbeActivity, func(ctx context.Context) (*models.Evidence, error) {
			return c.activity.Verify(ctx, models.ActivityQuery{
				Address: input.ActivityAddress,
				City:    input.City,
			})
		})
		ev.activity = res
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ev, nil
}

func probe(ctx context.Context, c *Coordinator, source string, call func(context.Context) (*models.Evidence, error)) (*models.Evidence, error) {
	start := time.Now()
	res, err := call(ctx)
	c.metrics.ObserveEvidenceLatency(source, time.Since(start))

	// A probe that returns after the deadline is discarded even if it succeeded.
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && res == nil {
		err = &ProviderError{Category: ErrorBadData, Source: source, Message: "probe returned no evidence"}
	}
	if err != nil {
		var pe *ProviderError
		if !errors.As(err, &pe) {
			pe = NewProviderError(source, err)
		}
		c.metrics.IncrementProviderFailure(source, string(pe.Category))
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "evidence probe failed",
				"source", source,
				"category", pe.Category,
				"error", err,
			)
		}
		return nil, pe
	}
	return res, nil
}
