package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Checks *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_ratelimit_checks_total",
			Help: "Rate limit checks by endpoint class and result",
		}, []string{"class", "result"}), // result: "allowed", "denied", "error"
	}
}

func (m *Metrics) IncrementCheck(class, result string) {
	if m != nil {
		m.Checks.WithLabelValues(class, result).Inc()
	}
}
