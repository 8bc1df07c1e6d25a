// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and shutdown coordination.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("login succeeded")
//
// Request-scoped loggers come from the context populated by
// httputil.LoggingMiddleware:
//
//	observability.FromContext(r.Context()).WithError(err).Error("session lookup failed")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.LoginAttemptsTotal.WithLabelValues("throttled").Inc()
//	router.Handle("/metrics", metrics.Handler())
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.RegisterRoutes(router) // /healthz, /readyz
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	shutdown.Register("tracing", tp.Shutdown)
package observability
