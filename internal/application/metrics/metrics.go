package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for application status changes.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	WriteConflicts prometheus.Counter
}

// New creates and registers the application metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_application_transitions_total",
			Help: "Derived application status changes",
		}, []string{"from", "to"}), // from is "none" for a new application
		Notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_application_notifications_total",
			Help: "Notifications raised by application status changes",
		}, []string{"kind"}),
		WriteConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seriosity_application_write_conflicts_total",
			Help: "Application compare-and-swap conflicts",
		}),
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementNotification(kind string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementWriteConflict() {
	if m != nil {
		m.WriteConflicts.Inc()
	}
}
