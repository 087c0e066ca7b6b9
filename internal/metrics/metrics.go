// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usemap_http_requests_total",
		Help: "HTTP requests by route pattern and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "usemap_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ThreadCacheLookups counts thread cache reads by result: hit, miss, error.
	ThreadCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usemap_thread_cache_lookups_total",
		Help: "Cached comment thread lookups by result.",
	}, []string{"result"})

	// ThreadUpdates counts local thread updates by operation and outcome.
	// Outcomes other than "applied" mean the cached thread did not hold the
	// target (parent_missing, not_found) or there was no cached thread (no_thread).
	ThreadUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usemap_thread_updates_total",
		Help: "Local comment thread updates by operation and outcome.",
	}, []string{"op", "outcome"})

	// EventsHandled counts worker-processed comment events by type and result.
	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usemap_comment_events_handled_total",
		Help: "Comment events processed by workers.",
	}, []string{"type", "result"})
)

// Middleware records request count and latency under the matched chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
