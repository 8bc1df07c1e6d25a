package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginAttemptsTotal *prometheus.CounterVec
	AuthFailuresTotal  *prometheus.CounterVec
	SessionsIssued     prometheus.Counter
	SessionsSwept      prometheus.Counter

	// Activity log metrics
	ActivityRecordsTotal *prometheus.CounterVec
	ActivityPurgedTotal  prometheus.Counter
	ActivityArchived     prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBConnectionsWait   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendwise_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spendwise_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendwise_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendwise_auth_failures_total",
				Help: "Rejected authenticated requests by reason",
			},
			[]string{"reason"},
		),
		SessionsIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spendwise_sessions_issued_total",
				Help: "Sessions created at login",
			},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spendwise_sessions_swept_total",
				Help: "Expired sessions removed by housekeeping",
			},
		),

		ActivityRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spendwise_activity_records_total",
				Help: "Activity log writes by status",
			},
			[]string{"status"},
		),
		ActivityPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spendwise_activity_purged_total",
				Help: "Activity log entries removed by retention",
			},
		),
		ActivityArchived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spendwise_activity_archived_total",
				Help: "Activity log entries archived before purge",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spendwise_db_connections_active",
				Help: "Number of in-use database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spendwise_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWait: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spendwise_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.AuthFailuresTotal,
		m.SessionsIssued,
		m.SessionsSwept,
		m.ActivityRecordsTotal,
		m.ActivityPurgedTotal,
		m.ActivityArchived,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWait,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDBStats copies connection pool statistics into the gauges
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWait.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// The route label is the mux path template so IDs don't explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
