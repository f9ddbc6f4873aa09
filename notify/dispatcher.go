package notify

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcatalog_notifications_sent_total",
			Help: "Number of events delivered to senders, by event kind.",
		},
		[]string{"kind"},
	)
	notificationsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcatalog_notifications_failed_total",
			Help: "Number of events a sender failed to deliver or the queue dropped, by event kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(notificationsSentTotal, notificationsFailedTotal)
}

// Dispatcher queues events and delivers them from a single worker, so events
// reach each sender in the order they were notified. Delivery failures are
// logged and dropped.
type Dispatcher struct {
	senders []Sender
	log     *zap.SugaredLogger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

func NewDispatcher(log *zap.SugaredLogger, size int, timeout time.Duration, senders ...Sender) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		senders: senders,
		log:     log,
		timeout: timeout,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues e and returns immediately. A full or closed queue drops the event.
func (d *Dispatcher) Notify(_ context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(e, "dispatcher closed")
		return
	}
	select {
	case d.queue <- e:
	default:
		d.drop(e, "queue full")
	}
}

func (d *Dispatcher) drop(e Event, why string) {
	notificationsFailedTotal.WithLabelValues(string(e.Kind)).Inc()
	d.log.Warnw("Dropping notification", zap.String("kind", string(e.Kind)), zap.String("subject", e.Subject()), zap.String("reason", why))
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Event) {
	for _, s := range d.senders {
		ctx, cancel := context.Background(), func() {}
		if d.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		err := s.Send(ctx, e)
		cancel()
		if err != nil {
			notificationsFailedTotal.WithLabelValues(string(e.Kind)).Inc()
			d.log.Warnw("Failed to deliver notification",
				zap.String("kind", string(e.Kind)),
				zap.String("subject", e.Subject()),
				zap.Error(err),
			)
			continue
		}
		notificationsSentTotal.WithLabelValues(string(e.Kind)).Inc()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

// LogSender writes every event to the log.
type LogSender struct {
	Log *zap.SugaredLogger
}

func (s LogSender) Send(_ context.Context, e Event) error {
	s.Log.Infow(Describe(e),
		zap.String("kind", string(e.Kind)),
		zap.String("game", e.Game()),
	)
	return nil
}
