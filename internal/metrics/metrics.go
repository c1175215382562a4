// Package metrics provides Prometheus metrics for the dropit server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upload metrics
	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropit_upload_bytes_total",
			Help: "Total bytes accepted through the upload endpoint",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropit_uploads_total",
			Help: "Total file upload attempts",
		},
		[]string{"status"},
	)

	uploadRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropit_upload_rejections_total",
			Help: "Upload validation rejections",
		},
		[]string{"reason"},
	)

	// Metadata metrics
	recordsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropit_records_created_total",
			Help: "Metadata records created",
		},
		[]string{"kind"}, // file or folder
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropit_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropit_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dropit_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// Storage provider metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dropit_storage_operation_duration_seconds",
			Help:    "Storage provider operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dropit_storage_operations_total",
			Help: "Total storage provider operations",
		},
		[]string{"operation", "status"},
	)

	credentialsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dropit_upload_credentials_issued_total",
			Help: "Signed upload credentials issued",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records a file upload attempt.
func RecordUpload(bytes int64, success bool) {
	status := "success"
	if success {
		uploadBytesTotal.Add(float64(bytes))
	} else {
		status = "error"
	}
	uploadsTotal.WithLabelValues(status).Inc()
}

// RecordUploadRejection records an upload validation rejection.
func RecordUploadRejection(reason string) {
	uploadRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordRecordCreated records a created metadata record ("file" or "folder").
func RecordRecordCreated(kind string) {
	recordsCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// RecordStorageOperation records a storage provider operation.
func RecordStorageOperation(operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCredentialIssued records an issued signed upload credential.
func RecordCredentialIssued() {
	credentialsIssuedTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
