package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transportRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_transport_requests_total",
			Help: "Total number of remote transport requests by outcome code",
		},
		[]string{"backend", "method", "code"},
	)

	transportRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_transport_request_duration_seconds",
			Help:    "Duration of remote transport exchanges in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "method"},
	)

	transportResponseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_transport_response_bytes",
			Help:    "Size of captured response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"backend"},
	)

	transportRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remote_transport_requests_in_flight",
			Help: "Number of remote transport exchanges currently running",
		},
	)

	requestAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_request_attempts_total",
			Help: "Attempts made by the request helper, by result",
		},
		[]string{"result"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remote_circuit_breaker_state",
			Help: "Circuit breaker state per destination host (0=closed, 1=open, 2=half-open)",
		},
		[]string{"host"},
	)
)

// TransportStarted marks an exchange as in flight and returns a func that records its outcome
func TransportStarted(backend, method string) func(code int, responseBytes int) {
	start := time.Now()
	transportRequestsInFlight.Inc()

	return func(code int, responseBytes int) {
		transportRequestsInFlight.Dec()
		transportRequestDuration.WithLabelValues(backend, method).Observe(time.Since(start).Seconds())
		transportRequestsTotal.WithLabelValues(backend, method, strconv.Itoa(code)).Inc()
		if responseBytes > 0 {
			transportResponseBytes.WithLabelValues(backend).Observe(float64(responseBytes))
		}
	}
}

// RecordRequestAttempt counts one attempt of the request helper (success, retry, failed, rejected)
func RecordRequestAttempt(result string) {
	requestAttemptsTotal.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState records the breaker state for host
func SetCircuitBreakerState(host string, state int) {
	circuitBreakerState.WithLabelValues(host).Set(float64(state))
}
