package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AccessMetrics counts data access outcomes and authorization denials.
type AccessMetrics struct {
	operations *prometheus.CounterVec
	denials    *prometheus.CounterVec
}

var (
	defaultAccessOnce    sync.Once
	defaultAccessMetrics *AccessMetrics
)

// NewAccessMetrics registers the access collectors. A nil registerer uses the
// default Prometheus registerer, registering at most once.
func NewAccessMetrics(registerer prometheus.Registerer) *AccessMetrics {
	if registerer == nil {
		defaultAccessOnce.Do(func() {
			defaultAccessMetrics = buildAccessMetrics(prometheus.DefaultRegisterer)
		})
		return defaultAccessMetrics
	}
	return buildAccessMetrics(registerer)
}

// ObserveOperation records the outcome of one gateway operation.
func (m *AccessMetrics) ObserveOperation(entity, op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(entity, op, outcome).Inc()
}

// ObserveDenial records a guard refusal.
func (m *AccessMetrics) ObserveDenial(resource, action, reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(resource, action, reason).Inc()
}

func buildAccessMetrics(registerer prometheus.Registerer) *AccessMetrics {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "companyos_access_operations_total",
		Help: "Data access operations partitioned by entity, operation and outcome.",
	}, []string{"entity", "op", "outcome"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "companyos_access_denials_total",
		Help: "Authorization denials partitioned by resource, action and reason.",
	}, []string{"resource", "action", "reason"})
	registerer.MustRegister(operations, denials)
	return &AccessMetrics{operations: operations, denials: denials}
}
