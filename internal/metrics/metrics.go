// Package metrics exports daemon counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crewchat"

// Metrics holds the daemon's collectors on a private registry. It implements
// messaging.Observer.
type Metrics struct {
	registry *prometheus.Registry

	sent          prometheus.Counter
	failures      *prometheus.CounterVec
	retries       prometheus.Counter
	subscriptions prometheus.Gauge
	delivery      prometheus.Histogram
}

// New registers the collectors. When b is non-nil, bus subscriber and drop
// counts are exported too.
func New(b *bus.Bus) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages persisted by the store.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_failures_total",
			Help:      "Send attempts that ended in failure, by error kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retries of failed messages.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Open conversation subscriptions.",
		}),
		delivery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_seconds",
			Help:      "Time from optimistic send to store acknowledgement.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 15},
		}),
	}
	m.registry.MustRegister(
		m.sent, m.failures, m.retries, m.subscriptions, m.delivery,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if b != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bus_subscribers",
				Help:      "Active event bus subscribers.",
			}, func() float64 { return float64(b.Subscribers()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_dropped_events_total",
				Help:      "Events dropped because a subscriber buffer was full.",
			}, func() float64 { return float64(b.Dropped()) }),
		)
	}
	return m
}

func (m *Metrics) MessageSent(latency time.Duration) {
	m.sent.Inc()
	m.delivery.Observe(latency.Seconds())
}

func (m *Metrics) MessageFailed(kind message.ErrorKind) {
	m.failures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) MessageRetried()     { m.retries.Inc() }
func (m *Metrics) SubscriptionOpened() { m.subscriptions.Inc() }
func (m *Metrics) SubscriptionClosed() { m.subscriptions.Dec() }

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
