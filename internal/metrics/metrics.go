// Package metrics owns the Prometheus collectors of both processes. Each
// process builds its own registry so tests never share global state.
package metrics

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soulconnect"

// Fetch sources recorded by the agent.
const (
	SourceCache       = "cache"
	SourceNetwork     = "network"
	SourcePassthrough = "passthrough"
	SourceError       = "error"
)

// Metrics bundles the collectors; a nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Responses     *prometheus.CounterVec
	AgentFetches  *prometheus.CounterVec
	Evictions     prometheus.Counter
	Notifications prometheus.Counter
	Syncs         *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "static",
			Name:      "responses_total",
			Help:      "Responses written by the static file responder, by status code.",
		}, []string{"status"}),
		AgentFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "fetches_total",
			Help:      "Intercepted fetches, by where the response came from.",
		}, []string{"source"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "cache_evictions_total",
			Help:      "Stale cache generations deleted during activation.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "notifications_total",
			Help:      "Notifications shown in response to push events.",
		}),
		Syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "background_syncs_total",
			Help:      "Background sync runs, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.Responses, m.AgentFetches, m.Evictions, m.Notifications, m.Syncs)
	return m
}

// ObserveResponse counts one responder response.
func (m *Metrics) ObserveResponse(status int) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveFetch counts one intercepted fetch.
func (m *Metrics) ObserveFetch(source string) {
	if m == nil {
		return
	}
	m.AgentFetches.WithLabelValues(source).Inc()
}

// ObserveEviction counts one deleted cache generation.
func (m *Metrics) ObserveEviction() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

// ObserveNotification counts one shown notification.
func (m *Metrics) ObserveNotification() {
	if m == nil {
		return
	}
	m.Notifications.Inc()
}

// ObserveSync counts one background sync run.
func (m *Metrics) ObserveSync(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.Syncs.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// NewApp builds the dedicated metrics listener app serving GET /metrics.
func (m *Metrics) NewApp() *fiber.App {
	app := fiber.New()
	app.Get("/metrics", m.Handler())
	return app
}
