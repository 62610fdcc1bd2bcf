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

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so services can be built without instrumentation in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Identity metrics
	AuthEventsTotal   *prometheus.CounterVec
	AccessDeniedTotal *prometheus.CounterVec
	RateLimitedTotal  *prometheus.CounterVec
	TokensPurgedTotal prometheus.Counter
	MailDeliveryTotal *prometheus.CounterVec

	// Audit and notification metrics
	AuditLogsTotal         *prometheus.CounterVec
	AuditSuppressedTotal   *prometheus.CounterVec
	NotificationsTotal     *prometheus.CounterVec
	NotificationSkipsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen      prometheus.Gauge
	DBConnectionsInUse     prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskcore_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskcore_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_auth_events_total",
				Help: "Session lifecycle operations by outcome code",
			},
			[]string{"operation", "code"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_access_denied_total",
				Help: "Authorization failures by error code",
			},
			[]string{"code"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_rate_limited_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"scope"},
		),
		TokensPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskcore_tokens_purged_total",
				Help: "Dead verification and refresh tokens removed by the janitor",
			},
		),
		MailDeliveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_mail_delivery_total",
				Help: "Verification mail deliveries by status",
			},
			[]string{"status"},
		),

		AuditLogsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_audit_logs_total",
				Help: "Task log entries written",
			},
			[]string{"event"},
		),
		AuditSuppressedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_audit_suppressed_total",
				Help: "Task log entries skipped because nothing changed",
			},
			[]string{"event"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_notifications_total",
				Help: "Notifications created by fan-out",
			},
			[]string{"type"},
		),
		NotificationSkipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskcore_notification_skips_total",
				Help: "Fan-out recipients skipped",
			},
			[]string{"type"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskcore_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskcore_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskcore_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskcore_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthEventsTotal,
		m.AccessDeniedTotal,
		m.RateLimitedTotal,
		m.TokensPurgedTotal,
		m.MailDeliveryTotal,
		m.AuditLogsTotal,
		m.AuditSuppressedTotal,
		m.NotificationsTotal,
		m.NotificationSkipsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// AuthEvent counts a session lifecycle outcome.
func (m *Metrics) AuthEvent(operation, code string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(operation, code).Inc()
}

// AccessDenied counts an authorization failure.
func (m *Metrics) AccessDenied(code string) {
	if m == nil {
		return
	}
	m.AccessDeniedTotal.WithLabelValues(code).Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// TokensPurged counts janitor deletions.
func (m *Metrics) TokensPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensPurgedTotal.Add(float64(n))
}

// MailDelivery counts a mail attempt.
func (m *Metrics) MailDelivery(status string) {
	if m == nil {
		return
	}
	m.MailDeliveryTotal.WithLabelValues(status).Inc()
}

// AuditLog counts a written task log.
func (m *Metrics) AuditLog(event string) {
	if m == nil {
		return
	}
	m.AuditLogsTotal.WithLabelValues(event).Inc()
}

// AuditSuppressed counts a task log skipped for having no changes.
func (m *Metrics) AuditSuppressed(event string) {
	if m == nil {
		return
	}
	m.AuditSuppressedTotal.WithLabelValues(event).Inc()
}

// Notification counts a created notification.
func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind).Inc()
}

// NotificationSkipped counts a skipped fan-out recipient.
func (m *Metrics) NotificationSkipped(kind string) {
	if m == nil {
		return
	}
	m.NotificationSkipsTotal.WithLabelValues(kind).Inc()
}

// RecordDBStats copies connection pool statistics into gauges.
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched mux route template so path parameters do not
// explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Install it with router.Use so the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
