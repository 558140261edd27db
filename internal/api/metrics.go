package api

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Krugou/aurorawatcher/internal/watcher"
)

// Metrics tracks check runs for the /metrics endpoint.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the watcher metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aurorawatcher_runs_total",
			Help: "Completed check runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aurorawatcher_run_duration_seconds",
			Help:    "Duration of check runs.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

// Observe records one run summary. Intended as a watcher.OnSummary
// callback.
func (m *Metrics) Observe(s watcher.Summary) {
	m.runs.WithLabelValues(outcomeLabel(s.Outcome)).Inc()
	m.duration.Observe(float64(s.DurationMillis) / 1000)
}

// outcomeLabel collapses error messages into one label value to keep
// cardinality bounded.
func outcomeLabel(outcome string) string {
	switch {
	case strings.HasPrefix(outcome, "Error:"):
		return "error"
	case outcome == watcher.OutcomeSkippedDaytime:
		return "skipped_daytime"
	case outcome == watcher.OutcomeInProgress:
		return "skipped_in_progress"
	case outcome == watcher.OutcomeNoActivity:
		return "no_activity"
	case outcome == watcher.OutcomeNoChange:
		return "activity_no_change"
	case outcome == watcher.OutcomePosted:
		return "posted"
	default:
		return "unknown"
	}
}
