package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scoring engine calls.
type Metrics struct {
	CallLatency  *prometheus.HistogramVec
	CallOutcome  *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proptoken_analysis_call_duration_seconds",
			Help:    "Duration of scoring engine calls by operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}), // operation: "market", "fraud"

		CallOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_analysis_calls_total",
			Help: "Scoring engine calls by operation and outcome",
		}, []string{"operation", "outcome"}), // outcome: "ok", "error", "rejected"

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "proptoken_analysis_breaker_open",
			Help: "1 when the scoring engine circuit breaker is open",
		}, []string{"breaker"}),
	}
}

func (m *Metrics) ObserveCall(operation, outcome string, d time.Duration) {
	if m != nil {
		m.CallLatency.WithLabelValues(operation).Observe(d.Seconds())
		m.CallOutcome.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m != nil {
		v := 0.0
		if open {
			v = 1
		}
		m.BreakerState.WithLabelValues(name).Set(v)
	}
}
