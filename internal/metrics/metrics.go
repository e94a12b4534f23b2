// Package metrics provides Prometheus metrics for the chartdeck server and loader.
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
	// HTTP request metrics (server side)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chartdeck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Manifest cache metrics
	manifestCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartdeck_manifest_cache_lookups_total",
			Help: "Manifest cache lookups by result",
		},
		[]string{"result"},
	)

	manifestFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartdeck_manifest_fetch_duration_seconds",
			Help:    "Time to fetch the folder manifest from the server",
			Buckets: prometheus.DefBuckets,
		},
	)

	// File fetch metrics
	fileFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartdeck_file_fetches_total",
			Help: "Total per-file fetch attempts by result",
		},
		[]string{"result"},
	)

	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chartdeck_batch_duration_seconds",
			Help:    "Fetch batch duration in seconds by phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// Loader session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chartdeck_load_sessions_active",
			Help: "Number of load sessions currently in flight",
		},
	)

	timeToReady = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartdeck_time_to_ready_seconds",
			Help:    "Time from load request to first publishable deck",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	cardsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chartdeck_cards_merged_total",
			Help: "Total flashcards created by the incremental merger",
		},
	)

	sessionsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chartdeck_load_sessions_cancelled_total",
			Help: "Load sessions superseded or torn down before completion",
		},
	)

	// Round persistence metrics
	roundsSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartdeck_rounds_saved_total",
			Help: "Round save attempts by result",
		},
		[]string{"result"},
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

// RecordManifestLookup records a manifest cache lookup.
func RecordManifestLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	manifestCacheLookups.WithLabelValues(result).Inc()
}

// RecordManifestFetch records a manifest network fetch duration.
func RecordManifestFetch(duration time.Duration) {
	manifestFetchDuration.Observe(duration.Seconds())
}

// RecordFileFetch records a per-file fetch attempt.
func RecordFileFetch(result string) {
	fileFetchesTotal.WithLabelValues(result).Inc()
}

// RecordBatch records a fetch batch duration for the given phase ("quick" or "background").
func RecordBatch(phase string, duration time.Duration) {
	batchDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// SessionStarted increments the active session gauge.
func SessionStarted() {
	sessionsActive.Inc()
}

// SessionEnded decrements the active session gauge.
func SessionEnded() {
	sessionsActive.Dec()
}

// RecordSessionCancelled records a superseded or torn-down session.
func RecordSessionCancelled() {
	sessionsCancelled.Inc()
}

// RecordTimeToReady records the time to the first publishable deck.
func RecordTimeToReady(duration time.Duration) {
	timeToReady.Observe(duration.Seconds())
}

// RecordCardCreated records a flashcard created by the merger.
func RecordCardCreated() {
	cardsMerged.Inc()
}

// RecordRoundSaved records a round save attempt.
func RecordRoundSaved(success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	roundsSavedTotal.WithLabelValues(result).Inc()
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

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
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
