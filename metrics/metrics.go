// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatasetReloads counts (re)loads of the funding event table.
	DatasetReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_dataset_reloads_total",
		Help: "Number of times the funding event table was loaded from its source.",
	})

	// DatasetReloadErrors counts failed event-table loads.
	DatasetReloadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_dataset_reload_errors_total",
		Help: "Number of failed attempts to load the funding event table.",
	})

	// PipelineDuration observes the time spent computing one venue-pair
	// comparison series.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "funding_pipeline_duration_seconds",
		Help:    "Duration of one full pair-series computation.",
		Buckets: prometheus.DefBuckets,
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funding_http_requests_total",
		Help: "HTTP requests served, by route, method and status.",
	}, []string{"path", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funding_http_request_duration_seconds",
		Help:    "HTTP request latency, by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})
)

// GinMiddleware records request counts and latencies per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
