package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_NoChecks(t *testing.T) {
	status := NewHealthChecker().Check(context.Background())

	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Checks)
}

func TestHealthChecker_Check(t *testing.T) {
	h := NewHealthChecker()
	h.Register("circuit_breaker", func(ctx context.Context) error { return nil })
	h.Register("secrets", func(ctx context.Context) error { return errors.New("vault sealed") })

	status := h.Check(context.Background())

	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["circuit_breaker"])
	assert.Equal(t, "unhealthy: vault sealed", status.Checks["secrets"])
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthChecker()
	h.Register("circuit_breaker", func(ctx context.Context) error { return errors.New("open") })

	rec := httptest.NewRecorder()
	h.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "unhealthy: open", status.Checks["circuit_breaker"])
}
