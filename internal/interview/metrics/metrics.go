package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the interview evidence pipeline.
type Metrics struct {
	// Per-answer transcription results
	Transcriptions *prometheus.CounterVec

	// Latency of single transcription calls by media kind
	TranscribeLatency *prometheus.HistogramVec

	// Analysis attempts by result
	AnalysisAttempts *prometheus.CounterVec

	// Terminal statuses reached by processing runs
	Outcomes *prometheus.CounterVec

	// Full ProcessInterview duration
	ProcessLatency prometheus.Histogram
}

// New creates and registers the interview pipeline metrics.
func New() *Metrics {
	return &Metrics{
		Transcriptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_interview_transcriptions_total",
			Help: "Answer transcriptions by media kind and result",
		}, []string{"media_kind", "result"}), // result: "ok", "fallback", "passthrough"

		TranscribeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seriosity_interview_transcribe_duration_seconds",
			Help:    "Duration of single transcription calls",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
		}, []string{"media_kind"}),

		AnalysisAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_interview_analysis_attempts_total",
			Help: "Aggregate analysis calls by result",
		}, []string{"result"}),

		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_interview_outcomes_total",
			Help: "Processing runs by terminal status",
		}, []string{"status"}), // status: "done", "failed", "abandoned"

		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "seriosity_interview_process_duration_seconds",
			Help:    "Duration of a full processing run",
			Buckets: []float64{1, 2.5, 5, 10, 20, 45, 90, 180},
		}),
	}
}

// IncrementTranscription records one answer's transcription result.
func (m *Metrics) IncrementTranscription(mediaKind, result string) {
	if m != nil {
		m.Transcriptions.WithLabelValues(mediaKind, result).Inc()
	}
}

// ObserveTranscribeLatency records a single transcription call.
func (m *Metrics) ObserveTranscribeLatency(mediaKind string, d time.Duration) {
	if m != nil {
		m.TranscribeLatency.WithLabelValues(mediaKind).Observe(d.Seconds())
	}
}

// IncrementAnalysisAttempt records one analyzer call.
func (m *Metrics) IncrementAnalysisAttempt(result string) {
	if m != nil {
		m.AnalysisAttempts.WithLabelValues(result).Inc()
	}
}

// IncrementOutcome records how a processing run ended.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status).Inc()
	}
}

// ObserveProcessLatency records the total processing duration.
func (m *Metrics) ObserveProcessLatency(d time.Duration) {
	if m != nil {
		m.ProcessLatency.Observe(d.Seconds())
	}
}
