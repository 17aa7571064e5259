package chat

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry     *prometheus.Registry
	connections  prometheus.Gauge
	onlineUsers  prometheus.Gauge
	events       *prometheus.CounterVec
	messagesSent prometheus.Counter
	accessDenied prometheus.Counter
	dropped      prometheus.Counter
}

// NewMetrics builds collectors on a private registry so several gateways can
// live in one process (tests do this).
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "speaky_ws_connections",
			Help: "Open websocket connections on this gateway.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "speaky_online_users",
			Help: "Users with at least one open socket on this gateway.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speaky_events_total",
			Help: "Inbound websocket events by kind.",
		}, []string{"event"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speaky_messages_sent_total",
			Help: "Chat messages persisted and broadcast.",
		}),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speaky_access_denied_total",
			Help: "Events rejected by the connection access check.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "speaky_dropped_events_total",
			Help: "Events discarded by the rate limiter, the decoder or a full socket buffer.",
		}),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		m.connections,
		m.onlineUsers,
		m.events,
		m.messagesSent,
		m.accessDenied,
		m.dropped,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
