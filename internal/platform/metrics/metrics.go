// Package metrics holds the Prometheus metrics for the identity endpoints.
// Store- and hasher-level metrics live next to their implementations; these
// cover the use cases.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all endpoint-level Prometheus metrics.
type Metrics struct {
	Operations *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "identityd_operations_total",
			Help: "Identity operations by use case and outcome code",
		}, []string{"op", "outcome"}),
	}
}

// ObserveOperation records one finished use case.
func (m *Metrics) ObserveOperation(op, outcome string) {
	m.Operations.WithLabelValues(op, outcome).Inc()
}
