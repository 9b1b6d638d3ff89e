package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerMetricsExposed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg)

	m.Transitions.WithLabelValues("PENDING", "PROCESSING", "ok").Inc()
	m.OrdersPlaced.WithLabelValues("CASH").Add(2)
	m.Requests.WithLabelValues("/api/orders", "200").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("PENDING", "PROCESSING", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersPlaced.WithLabelValues("CASH")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pos_orders_status_transitions_total{from="PENDING",result="ok",to="PROCESSING"} 1`)
	assert.Contains(t, string(body), `pos_http_requests_total{handler="/api/orders",status="200"} 1`)
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewServerMetrics(reg)
	assert.Panics(t, func() { NewServerMetrics(reg) })
}
