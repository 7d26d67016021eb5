package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Enqueued         *prometheus.CounterVec
	Delivered        *prometheus.CounterVec
	Dropped          *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	CircuitOpen      prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

// New creates and registers notification metrics.
func New() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_notifications_enqueued_total",
			Help: "Notifications accepted for delivery",
		}, []string{"kind"}),
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_notifications_delivered_total",
			Help: "Notifications handed to the sink",
		}, []string{"kind"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_notifications_dropped_total",
			Help: "Notifications dropped before delivery",
		}, []string{"kind", "reason"}), // reason: "queue_full", "circuit_open", "closed"
		DeliveryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seriosity_notifications_delivery_failures_total",
			Help: "Sink delivery failures",
		}, []string{"kind"}),
		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "seriosity_notifications_circuit_open",
			Help: "1 while the delivery circuit is open",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "seriosity_notifications_queue_depth",
			Help: "Notifications waiting for delivery",
		}),
	}
}

func (m *Metrics) IncEnqueued(kind string) {
	if m != nil {
		m.Enqueued.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncDelivered(kind string) {
	if m != nil {
		m.Delivered.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncDropped(kind, reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(kind, reason).Inc()
	}
}

func (m *Metrics) IncDeliveryFailure(kind string) {
	if m != nil {
		m.DeliveryFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
	} else {
		m.CircuitOpen.Set(0)
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
