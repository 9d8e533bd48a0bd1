// Package metrics holds the Prometheus collectors of the media service.
// Business counters are updated from the upload, attachment and cleanup
// packages; HTTP metrics come from Middleware.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_http_requests_total",
			Help: "Total HTTP requests handled by the media service",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var (
	// UploadsTotal counts uploads by strategy and result.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Uploads processed, by strategy and result",
		},
		[]string{"strategy", "status"},
	)

	// OrphanedFilesTotal counts stored files left without metadata after a failed upload.
	OrphanedFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_orphaned_files_total",
			Help: "Files written to storage whose metadata was never committed",
		},
	)

	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_deletes_total",
			Help: "Cascade deletes, by result",
		},
		[]string{"status"},
	)

	// FileDeleteFailuresTotal counts physical deletions that failed during a cascade.
	FileDeleteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_file_delete_failures_total",
			Help: "Physical file deletions that failed during cascade delete",
		},
	)

	AttachmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_attachments_total",
			Help: "Attach requests, by result",
		},
		[]string{"status"},
	)
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusMissing = "missing"
)

func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
