package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "forum"

// Metrics собирает счетчики шлюза, кэша и мутаций. Все методы допускают nil-получатель.
type Metrics struct {
	registry *prometheus.Registry

	gatewayRequests *prometheus.CounterVec
	cacheFetches    *prometheus.CounterVec
	invalidations   *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	liveSubscribers prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Requests sent to the remote data service.",
		}, []string{"resource", "method", "outcome"}),
		cacheFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Entity cache fetches by key kind and outcome (issued, applied, failed, discarded).",
		}, []string{"kind", "outcome"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entity cache invalidations by key kind.",
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "total",
			Help:      "Mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "subscriptions",
			Help:      "Active websocket cache subscriptions.",
		}),
	}
	reg.MustRegister(
		m.gatewayRequests,
		m.cacheFetches,
		m.invalidations,
		m.mutations,
		m.liveSubscribers,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) GatewayRequest(resource, method, outcome string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(resource, method, outcome).Inc()
}

func (m *Metrics) CacheFetch(kind, outcome string) {
	if m == nil {
		return
	}
	m.cacheFetches.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Invalidation(kind string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(kind).Inc()
}

func (m *Metrics) Mutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) LiveSubscribed(delta int) {
	if m == nil {
		return
	}
	m.liveSubscribers.Add(float64(delta))
}
