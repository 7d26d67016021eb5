package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seriosity/internal/notification/metrics"
	"seriosity/pkg/requestcontext"
)

const (
	defaultBuffer    = 256
	deliveryTimeout  = 5 * time.Second
	drainTimeout     = 10 * time.Second
	circuitThreshold = 5
	circuitCooldown  = 30 * time.Second
)

// Dispatcher queues notifications in memory and delivers them to a Sink from
// a single background worker. Notify never blocks: when the queue is full the
// notification is dropped and counted.
type Dispatcher struct {
	sink    Sink
	queue   chan Notification
	breaker *circuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics

	// mu guards closed. Notify enqueues under the read lock, so once Run
	// holds the write lock no further notification can reach the queue.
	mu     sync.RWMutex
	closed bool
}

type Option func(d *Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithBuffer sets the queue capacity.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

// WithCircuitBreaker overrides the failure threshold and cooldown.
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(d *Dispatcher) {
		d.breaker = newCircuitBreaker(threshold, cooldown)
	}
}

func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Notification, defaultBuffer),
		breaker: newCircuitBreaker(circuitThreshold, circuitCooldown),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify enqueues n for delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = requestcontext.Now(ctx)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, n, "closed")
		return
	}
	select {
	case d.queue <- n:
		d.metrics.IncEnqueued(string(n.Kind))
		d.metrics.SetQueueDepth(len(d.queue))
	default:
		d.drop(ctx, n, "queue_full")
	}
}

// Run delivers queued notifications until ctx is cancelled, then drains what
// is left within a bounded time.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.close()
			d.drain()
			return nil
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	d.metrics.SetQueueDepth(len(d.queue))
	if !d.breaker.allow() {
		d.drop(ctx, n, "circuit_open")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	err := d.sink.Deliver(callCtx, n)
	d.breaker.record(err)
	d.metrics.SetCircuitOpen(d.breaker.isOpen())
	if err != nil {
		d.metrics.IncDeliveryFailure(string(n.Kind))
		d.logger.WarnContext(ctx, "notification delivery failed",
			"user_id", n.UserID,
			"kind", n.Kind,
			"error", err,
		)
		return
	}
	d.metrics.IncDelivered(string(n.Kind))
}

func (d *Dispatcher) drop(ctx context.Context, n Notification, reason string) {
	d.metrics.IncDropped(string(n.Kind), reason)
	d.logger.WarnContext(ctx, "notification dropped",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", n.UserID,
		"kind", n.Kind,
		"reason", reason,
	)
}
