// Package metrics registers the Prometheus collectors of simple-drive and
// provides the HTTP instrumentation middleware.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineFailures counts content pipeline failures by stage
	// (upload, thumbnail, metadata)
	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simpledrive_pipeline_failures_total",
			Help: "Content pipeline failures by stage.",
		},
		[]string{"stage"},
	)

	// BlobCleanupFailures counts blobs that could not be deleted after their
	// item was deleted or their content was replaced
	BlobCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simpledrive_blob_cleanup_failures_total",
		Help: "Blob deletions that failed and left orphaned objects.",
	})

	// PathCacheHits and PathCacheMisses track the folder path cache
	PathCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simpledrive_path_cache_hits_total",
		Help: "Folder path cache hits.",
	})
	PathCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simpledrive_path_cache_misses_total",
		Help: "Folder path cache misses.",
	})

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simpledrive_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simpledrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Middleware records request counts and durations. Requests are labelled
// with the matched chi route pattern so item IDs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
