package observability

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	require.NotNil(t, metrics)

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	metrics.LoginAttemptsTotal.WithLabelValues("throttled").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LoginAttemptsTotal.WithLabelValues("throttled")))

	t.Run("double registration panics", func(t *testing.T) {
		assert.Panics(t, func() { NewMetrics(registry) })
	})
}

func TestMetrics_ObserveDBStats(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveDBStats(sql.DBStats{InUse: 3, Idle: 2, WaitCount: 7})

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.DBConnectionsActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.DBConnectionsIdle))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.DBConnectionsWait))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/users/{userId}/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}).Methods(http.MethodPut)

	req := httptest.NewRequest(http.MethodPut, "/api/users/42/status", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPut, "/api/users/{userId}/status", "403")
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func TestMetrics_Handler(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.SessionsIssued.Inc()

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(string(body), "spendwise_sessions_issued_total 1"))
}
