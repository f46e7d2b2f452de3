package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "roomrelay"

// Metrics holds the relay's Prometheus collectors on a private registry, so
// several hubs (as in tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	connections          prometheus.Gauge
	members              prometheus.Gauge
	rooms                prometheus.Gauge
	registrations        prometheus.Counter
	registrationTimeouts prometheus.Counter
	notRegistered        prometheus.Counter
	messagesRelayed      prometheus.Counter
	deliveries           prometheus.Counter
	droppedClients       prometheus.Counter
}

// NewMetrics creates and registers all relay collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Open WebSocket connections, registered or not.",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "members",
			Help:      "Registered connections across all rooms.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registrations_total",
			Help:      "Connections that completed the initInstance handshake.",
		}),
		registrationTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registration_timeouts_total",
			Help:      "Connections closed for not registering in time.",
		}),
		notRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "not_registered_total",
			Help:      "Messages rejected because the sender had not registered.",
		}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_relayed_total",
			Help:      "Messages accepted for broadcast.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Envelopes queued to recipients.",
		}),
		droppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_clients_total",
			Help:      "Clients removed because their send buffer was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.members,
		m.rooms,
		m.registrations,
		m.registrationTimeouts,
		m.notRegistered,
		m.messagesRelayed,
		m.deliveries,
		m.droppedClients,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
