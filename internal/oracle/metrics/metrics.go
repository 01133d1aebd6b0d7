package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for oracle verification.
type Metrics struct {
	// Evidence probe latencies by source
	EvidenceLatency *prometheus.HistogramVec

	// Probe failures by source and error category
	ProviderFailures *prometheus.CounterVec

	// Registry cache lookups by result (hit, miss)
	RegistryCache *prometheus.CounterVec

	// Overall verification latency
	VerifyLatency prometheus.Histogram
}

// New registers the oracle metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EvidenceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proptoken_oracle_evidence_duration_seconds",
			Help:    "Duration of evidence probes by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}), // source: "satellite", "registry", "activity"

		ProviderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_oracle_provider_failures_total",
			Help: "Evidence probe failures by source and category",
		}, []string{"source", "category"}),

		RegistryCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_oracle_registry_cache_total",
			Help: "Registry evidence cache lookups by result",
		}, []string{"result"}),

		VerifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "proptoken_oracle_verify_duration_seconds",
			Help:    "Duration of a full oracle verification including all probes",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	if m != nil {
		m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementProviderFailure(source, category string) {
	if m != nil {
		m.ProviderFailures.WithLabelValues(source, category).Inc()
	}
}

func (m *Metrics) IncrementCacheHit() {
	if m != nil {
		m.RegistryCache.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) IncrementCacheMiss() {
	if m != nil {
		m.RegistryCache.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
