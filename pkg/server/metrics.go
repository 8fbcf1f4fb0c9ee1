package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts gate decisions and role resolutions. It satisfies the
// recorder interfaces of both.
type Metrics struct {
	decisions   *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

// NewMetrics registers the gatekeeper collectors on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "gate_decisions_total",
			Help:      "Gate decisions by outcome (allow, redirect, or denial reason).",
		}, []string{"outcome"}),
		resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "role_resolutions_total",
			Help:      "Role resolutions by outcome (resolved or degraded).",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordDecision(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordResolution(outcome string) {
	m.resolutions.WithLabelValues(outcome).Inc()
}

// RegisterMetricsEndpoint exposes the default registry on /metrics.
func RegisterMetricsEndpoint(s *Server) {
	s.Router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
