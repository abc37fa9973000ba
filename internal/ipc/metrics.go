package ipc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics represents the acceptor metrics
type Metrics struct {
	// Connections accepted since start
	Accepted prometheus.Counter
	// Connections currently being served
	Active prometheus.Gauge
	// Accept calls that failed for a reason other than shutdown
	AcceptErrors prometheus.Counter
	// Handlers that panicked
	HandlerPanics prometheus.Counter
}

// GetPrometheusMetrics creates the acceptor metrics and registers them with reg.
func GetPrometheusMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := newMetrics(namespace)
	for _, c := range []prometheus.Collector{m.Accepted, m.Active, m.AcceptErrors, m.HandlerPanics} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NilMetrics returns metrics that are updated but never exported.
func NilMetrics() *Metrics {
	return newMetrics("")
}

func newMetrics(namespace string) *Metrics {
	return &Metrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "connections_accepted_total",
			Help:      "Number of accepted IPC connections.",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "connections_active",
			Help:      "Number of IPC connections being served.",
		}),
		AcceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "accept_errors_total",
			Help:      "Number of failed accept calls.",
		}),
		HandlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "handler_panics_total",
			Help:      "Number of connection handlers that panicked.",
		}),
	}
}
