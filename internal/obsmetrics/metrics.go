// Package obsmetrics instruments the payment core with Prometheus counters
// and gauges, the same prometheus.NewRegistry()/CounterVec/Gauge pattern the
// teacher repo uses for its mint-intent and callback counters. The core
// never runs an HTTP server (spec §1 Non-goals), so Registry is exposed for
// an embedder to mount on whatever handler they already serve.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the payment core records.
type Registry struct {
	registry *prometheus.Registry

	PaymentOutcomes   *prometheus.CounterVec
	GuardReservations *prometheus.CounterVec
	CircuitState      *prometheus.GaugeVec
	CircuitFailures   *prometheus.CounterVec
	RetryAttempts     *prometheus.CounterVec
}

// New builds and registers all metrics in a fresh registry.
func New() *Registry {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpay_payment_outcomes_total",
		Help: "Total number of pay() invocations by terminal status",
	}, []string{"status"})

	guardRes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpay_guard_reservations_total",
		Help: "Guard reserve() outcomes by guard name and result",
	}, []string{"guard", "result"})

	circuitState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentpay_circuit_state",
		Help: "Circuit breaker state per service (0=closed, 1=half_open, 2=open)",
	}, []string{"service"})

	circuitFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpay_circuit_failures_total",
		Help: "Failures recorded against a circuit breaker",
	}, []string{"service"})

	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentpay_retry_attempts_total",
		Help: "Retry attempts for adapter execution",
	}, []string{"result"})

	r := prometheus.NewRegistry()
	r.MustRegister(outcomes, guardRes, circuitState, circuitFailures, retries)

	return &Registry{
		registry:          r,
		PaymentOutcomes:   outcomes,
		GuardReservations: guardRes,
		CircuitState:      circuitState,
		CircuitFailures:   circuitFailures,
		RetryAttempts:     retries,
	}
}

// PromRegistry exposes the underlying prometheus.Registry for an embedder to
// serve via promhttp.HandlerFor on their own mux.
func (r *Registry) PromRegistry() *prometheus.Registry {
	return r.registry
}
