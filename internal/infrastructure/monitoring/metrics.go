package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one client runtime.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Protocol metrics
	MessagesIn         *prometheus.CounterVec
	MessagesOut        *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	ProtocolViolations *prometheus.CounterVec

	// Transport metrics
	Connected  prometheus.Gauge
	Reconnects prometheus.Counter

	// Registry metrics
	ComponentsLive prometheus.Gauge
	Joins          prometheus.Counter
	Leaves         prometheus.Counter

	// Navigation metrics
	Navigations        *prometheus.CounterVec
	NavigationFailures prometheus.Counter
	StaleFetches       prometheus.Counter
	FetchDuration      prometheus.Histogram
	CacheEntries       prometheus.Gauge
	CacheEvictions     prometheus.Counter
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MessagesIn: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_messages_received_total",
				Help: "Inbound protocol messages by command",
			},
			[]string{"command"},
		),
		MessagesOut: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_messages_sent_total",
				Help: "Outbound protocol messages by command",
			},
			[]string{"command"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_messages_dropped_total",
				Help: "Outbound messages dropped while the channel was not open",
			},
			[]string{"command"},
		),
		ProtocolViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_protocol_violations_total",
				Help: "Rejected inbound updates by kind",
			},
			[]string{"kind"},
		),

		Connected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reactor_transport_connected",
				Help: "1 while the duplex channel is open",
			},
		),
		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactor_transport_reconnects_total",
				Help: "Successful connections after the first one",
			},
		),

		ComponentsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reactor_components_live",
				Help: "Components currently tracked by the registry",
			},
		),
		Joins: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactor_component_joins_total",
				Help: "Join messages emitted",
			},
		),
		Leaves: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactor_component_leaves_total",
				Help: "Leave messages emitted",
			},
		),

		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_navigations_total",
				Help: "Navigations by kind (boost, pop, full, external)",
			},
			[]string{"kind"},
		),
		NavigationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactor_navigation_failures_total",
				Help: "Page fetches that failed or returned non-success",
			},
		),
		StaleFetches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactor_navigation_stale_fetches_total",
				Help: "Page fetches discarded because a newer navigation superseded them",
			},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reactor_fetch_duration_seconds",
				Help:    "Page fetch duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		CacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reactor_history_cache_entries",
				Help: "Pages held in the navigation cache",
			},
		),
		CacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactor_history_cache_evictions_total",
				Help: "Pages evicted from the navigation cache",
			},
		),
	}
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
