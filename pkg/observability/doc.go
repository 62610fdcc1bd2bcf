// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry setup for taskcore.
//
// # Structured Logging
//
// Loggers are logrus loggers with a JSON formatter:
//
//	logger := observability.NewLogger("info", os.Stdout)
//	observability.FromContext(ctx, logger).WithField("code", code).Warn("request failed")
//
// FromContext adds request_id, user_id, trace_id and span_id when present.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	metrics.AuthEvent("login", "SYS_000")
//
// All helper methods accept a nil receiver.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient).WithMetrics(metrics)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "taskcore",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
