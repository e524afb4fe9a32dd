package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. All methods are safe on
// a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	connections   prometheus.Gauge
	messages      *prometheus.CounterVec
	joins         *prometheus.CounterVec
	evictions     prometheus.Counter
	slowConsumers prometheus.Counter
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_errors_total",
			Help: "Rejected operations by reason code",
		}, []string{"path", "method", "code"}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "helpdesk_ws_connections",
			Help: "Currently open websocket connections",
		}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_messages_posted_total",
			Help: "Persisted chat messages by sender type",
		}, []string{"sender_type"}),
		joins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_room_joins_total",
			Help: "join_ticket outcomes",
		}, []string{"outcome"}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_room_evictions_total",
			Help: "Connections evicted because their ticket closed",
		}),
		slowConsumers: factory.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_slow_consumer_disconnects_total",
			Help: "Connections dropped because their send buffer was full",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// ConnectionOpened tracks a new websocket session.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed tracks a finished websocket session.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// MessagePosted counts a persisted message.
func (m *Metrics) MessagePosted(senderType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(senderType).Inc()
}

// RoomJoin counts a join outcome ("joined" or "read_only").
func (m *Metrics) RoomJoin(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

// Evicted counts connections removed by a ticket close.
func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// SlowConsumer counts a connection dropped for a full send buffer.
func (m *Metrics) SlowConsumer() {
	if m == nil {
		return
	}
	m.slowConsumers.Inc()
}
