package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransportStarted(t *testing.T) {
	before := testutil.ToFloat64(transportRequestsTotal.WithLabelValues("conn", "POST", "2"))

	done := TransportStarted("conn", "POST")
	assert.Equal(t, float64(1), testutil.ToFloat64(transportRequestsInFlight))

	done(2, 0)
	assert.Equal(t, float64(0), testutil.ToFloat64(transportRequestsInFlight))
	assert.Equal(t, before+1, testutil.ToFloat64(transportRequestsTotal.WithLabelValues("conn", "POST", "2")))
}

func TestRecordRequestAttempt(t *testing.T) {
	before := testutil.ToFloat64(requestAttemptsTotal.WithLabelValues("retry"))
	RecordRequestAttempt("retry")
	assert.Equal(t, before+1, testutil.ToFloat64(requestAttemptsTotal.WithLabelValues("retry")))
}

func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("example.com", 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(circuitBreakerState.WithLabelValues("example.com")))
}
