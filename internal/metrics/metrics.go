// Package metrics exposes prometheus counters for the daemon session and the
// hot-reload decisions made from it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// rpcMessages counts decoded daemon messages by correlation kind
	rpcMessages *prometheus.CounterVec

	// decodeFaults counts malformed chunks discarded by the session
	decodeFaults prometheus.Counter

	// reconnects counts retries while the daemon socket does not exist yet
	reconnects prometheus.Counter

	// builds counts finished builds by result
	builds *prometheus.CounterVec

	// diagnostics counts diagnostic events by severity and action
	diagnostics *prometheus.CounterVec

	hotUpdates  prometheus.Counter
	fullReloads prometheus.Counter
	clients     prometheus.Gauge
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rpcMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dunehmr_rpc_messages_total",
			Help: "Daemon messages received by correlation kind",
		}, []string{"kind"}),
		decodeFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "dunehmr_rpc_decode_faults_total",
			Help: "Malformed S-expression chunks discarded",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "dunehmr_rpc_reconnects_total",
			Help: "Connection retries while the daemon socket is missing",
		}),
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dunehmr_builds_total",
			Help: "Finished builds by result",
		}, []string{"result"}),
		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dunehmr_diagnostics_total",
			Help: "Diagnostic events by severity and action",
		}, []string{"severity", "action"}),
		hotUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "dunehmr_hot_updates_total",
			Help: "Hot updates pushed to clients",
		}),
		fullReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "dunehmr_full_reloads_total",
			Help: "Full page reloads requested",
		}),
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dunehmr_hmr_clients",
			Help: "Connected HMR websocket clients",
		}),
	}
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RPCMessage(kind string) {
	if m != nil {
		m.rpcMessages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) DecodeFault() {
	if m != nil {
		m.decodeFaults.Inc()
	}
}

func (m *Metrics) Reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) Build(result string) {
	if m != nil {
		m.builds.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Diagnostic(severity, action string) {
	if m != nil {
		m.diagnostics.WithLabelValues(severity, action).Inc()
	}
}

func (m *Metrics) HotUpdate() {
	if m != nil {
		m.hotUpdates.Inc()
	}
}

func (m *Metrics) FullReload() {
	if m != nil {
		m.fullReloads.Inc()
	}
}

func (m *Metrics) ClientConnected() {
	if m != nil {
		m.clients.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.clients.Dec()
	}
}
