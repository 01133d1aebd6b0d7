// Package sink forwards activity events to an external broker.
package sink

import (
	"context"
	"log/slog"

	"proptoken/internal/activity/metrics"
	"proptoken/internal/activity/models"
)

type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev models.Event) error
}

// Worker drains the recorder's sink channel into a publisher. A failed publish
// is logged and counted; the feed itself is unaffected.
type Worker struct {
	publisher Publisher
	inbox     <-chan models.Event
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(publisher Publisher, inbox <-chan models.Event, opts ...Option) *Worker {
	w := &Worker{publisher: publisher, inbox: inbox}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.publisher.Publish(ctx, ev); err != nil {
				w.metrics.IncrementSinkFailure(w.publisher.Name())
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "activity sink publish failed",
						"sink", w.publisher.Name(),
						"event_id", ev.ID,
						"type", ev.Type,
						"error", err,
					)
				}
			}
		}
	}
}
