package middleware

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "incident_api_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "incident_api_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	analysesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "incident_api_analyses_total",
		Help: "Background analysis runs started.",
	})

	analysisFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "incident_api_analysis_failures_total",
		Help: "Background analysis runs that ended in error.",
	})
)

// MetricsMiddleware records request counts and latency.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(requestDuration.WithLabelValues(r.Method))
		defer timer.ObserveDuration()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r)

		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

// ObserveAnalysisStarted bumps the analysis-run counter.
func ObserveAnalysisStarted() { analysesTotal.Inc() }

// ObserveAnalysisFailed bumps the analysis-failure counter.
func ObserveAnalysisFailed() { analysisFailures.Inc() }

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler { return promhttp.Handler() }
