package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for evidence and score recomputation.
type Metrics struct {
	ScoreTotal        prometheus.Histogram
	Recomputations    *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	WriteConflicts    prometheus.Counter
	ReconcileFailures prometheus.Counter
}

// New creates and registers the evidence metrics.
func New() *Metrics {
	return &Metrics{
		ScoreTotal: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seriosity_score_total",
			Help:    "Distribution of computed Seriosity totals",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		Recomputations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_score_recomputations_total",
			Help: "Score recomputations by triggering change",
		}, []string{"trigger"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_score_cache_lookups_total",
			Help: "Score cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
		WriteConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seriosity_evidence_write_conflicts_total",
			Help: "Evidence compare-and-swap conflicts",
		}),
		ReconcileFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seriosity_score_reconcile_failures_total",
			Help: "Stored scores that disagreed with a recomputation",
		}),
	}
}

// ObserveScore records a computed total and what triggered it.
func (m *Metrics) ObserveScore(trigger string, total int) {
	if m != nil {
		m.Recomputations.WithLabelValues(trigger).Inc()
		m.ScoreTotal.Observe(float64(total))
	}
}

// IncrementCacheLookup records a cache hit, miss or error.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// IncrementWriteConflict records a lost compare-and-swap.
func (m *Metrics) IncrementWriteConflict() {
	if m != nil {
		m.WriteConflicts.Inc()
	}
}

// IncrementReconcileFailure records a drifted stored score.
func (m *Metrics) IncrementReconcileFailure() {
	if m != nil {
		m.ReconcileFailures.Inc()
	}
}
