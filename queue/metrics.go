package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// breakerState tracks the current state of each queue's breaker.
	// Values: 0=closed, 1=half-open, 2=open
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ari_circuit_breaker_state",
			Help: "Current state of the request queue circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ari_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ari_request_queue_depth",
			Help: "Number of operations waiting in the request queue",
		},
		[]string{"name"},
	)

	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ari_request_retries_total",
			Help: "Total number of operation retries scheduled by the request queue",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(breakerState)
	prometheus.MustRegister(breakerTransitions)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(retries)
}

func recordBreakerState(name string, state State) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

func recordBreakerTransition(name string, from, to State) {
	breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	recordBreakerState(name, to)
}

func recordQueueDepth(name string, depth int) {
	queueDepth.WithLabelValues(name).Set(float64(depth))
}

func recordRetry(name string) {
	retries.WithLabelValues(name).Inc()
}
