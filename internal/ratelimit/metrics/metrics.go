package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_ratelimit_decisions_total",
			Help: "Rate limit checks by scope and outcome",
		}, []string{"scope", "outcome"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "proptoken_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the store errored",
		}),
	}
}

func (m *Metrics) IncrementDecision(scope string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "limited"
	}
	m.Decisions.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) IncrementStoreError() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
