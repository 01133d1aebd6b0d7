package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the activity feed.
type Metrics struct {
	Events       *prometheus.CounterVec
	Evicted      prometheus.Counter
	SinkFailures *prometheus.CounterVec
	SinkDropped  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_activity_events_total",
			Help: "Activity events recorded by type",
		}, []string{"type"}),
		Evicted: f.NewCounter(prometheus.CounterOpts{
			Name: "proptoken_activity_evicted_total",
			Help: "Activity events evicted by the retention limit",
		}),
		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_activity_sink_failures_total",
			Help: "Activity events the external sink failed to publish",
		}, []string{"sink"}),
		SinkDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "proptoken_activity_sink_dropped_total",
			Help: "Activity events not forwarded because the sink queue was full",
		}),
	}
}

func (m *Metrics) IncrementEvent(eventType string) {
	if m != nil {
		m.Events.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncrementEvicted() {
	if m != nil {
		m.Evicted.Inc()
	}
}

func (m *Metrics) IncrementSinkFailure(sink string) {
	if m != nil {
		m.SinkFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementSinkDropped() {
	if m != nil {
		m.SinkDropped.Inc()
	}
}
