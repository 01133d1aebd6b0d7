package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for submission runs.
type Metrics struct {
	// Submissions accepted
	Submissions prometheus.Counter

	// Runs currently executing in this process
	ActiveRuns prometheus.Gauge

	// Stage durations by stage
	StageLatency *prometheus.HistogramVec

	// Terminal run outcomes (eligible, rejected, failed, cancelled)
	Outcomes *prometheus.CounterVec

	// Consensus rejections by the first failing rule
	Rejections *prometheus.CounterVec

	// Eligible assets whose fingerprint was already recorded
	DuplicateFingerprints prometheus.Counter
}

// New registers the submission metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounter(prometheus.CounterOpts{
			Name: "proptoken_submissions_total",
			Help: "Total number of submissions accepted",
		}),
		ActiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Name: "proptoken_submission_runs_active",
			Help: "Verification runs currently executing",
		}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proptoken_submission_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_submission_outcomes_total",
			Help: "Terminal run outcomes",
		}, []string{"outcome"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "proptoken_consensus_rejections_total",
			Help: "Consensus rejections by first failing rule",
		}, []string{"rule"}),
		DuplicateFingerprints: f.NewCounter(prometheus.CounterOpts{
			Name: "proptoken_eligible_duplicate_fingerprints_total",
			Help: "Eligible assets whose fingerprint matched an earlier asset",
		}),
	}
}

func (m *Metrics) IncrementSubmissions() {
	if m != nil {
		m.Submissions.Inc()
	}
}

func (m *Metrics) RunStarted() {
	if m != nil {
		m.ActiveRuns.Inc()
	}
}

func (m *Metrics) RunFinished(outcome string) {
	if m != nil {
		m.ActiveRuns.Dec()
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRejection(rule string) {
	if m != nil {
		m.Rejections.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) IncrementDuplicateFingerprint() {
	if m != nil {
		m.DuplicateFingerprints.Inc()
	}
}
