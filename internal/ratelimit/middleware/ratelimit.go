// Package middleware throttles mutating submission routes per submitter.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"proptoken/internal/ratelimit/metrics"
	"proptoken/internal/ratelimit/models"
	"proptoken/pkg/platform/httputil"
	"proptoken/pkg/platform/middleware/metadata"
	"proptoken/pkg/requestcontext"
)

type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// New allows limit requests per caller per sliding window.
func New(store Store, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limit throttles the wrapped routes under scope. Authenticated callers are
// keyed by submitter, anonymous ones by client IP. A store failure lets the
// request through.
func (m *Middleware) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := scope + ":" + callerKey(ctx)

			result, err := m.store.Allow(ctx, key, m.limit, m.window)
			if err != nil {
				m.metrics.IncrementStoreError()
				if m.logger != nil {
					m.logger.ErrorContext(ctx, "failed to check rate limit",
						"request_id", requestcontext.RequestID(ctx),
						"scope", scope,
						"error", err,
					)
				}
				next.ServeHTTP(w, r)
				return
			}
			m.metrics.IncrementDecision(scope, result.Allowed)

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				if m.logger != nil {
					m.logger.WarnContext(ctx, "rate limit exceeded",
						"request_id", requestcontext.RequestID(ctx),
						"scope", scope,
						"submitter_id", requestcontext.SubmitterID(ctx),
					)
				}
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(ctx context.Context) string {
	if submitter := requestcontext.SubmitterID(ctx); submitter != "" {
		return "submitter:" + submitter
	}
	return "ip:" + metadata.GetClientIP(ctx)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:       "rate_limit_exceeded",
		Description: "Too many submission requests. Please try again later.",
		RetryAfter:  result.RetryAfter,
		QuotaLimit:  result.Limit,
		QuotaReset:  result.ResetAt,
	})
}
