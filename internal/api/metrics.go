package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	docproofRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docproof_requests_total",
		Help: "HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	docproofRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docproof_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	docproofVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docproof_verifications_total",
		Help: "Total verification decisions by method and outcome.",
	}, []string{"method", "verified"})

	docproofAnchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docproof_anchors_total",
		Help: "Total anchoring runs by finalization outcome.",
	}, []string{"finalized"})

	docproofLedgerWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docproof_ledger_writes_total",
		Help: "Total ledger writes by result.",
	}, []string{"result"})

	docproofHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docproof_health_checks_total",
		Help: "Dependency health probes by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		docproofRequestsTotal.WithLabelValues(method, path, status).Inc()
		docproofRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordVerification records one verification decision.
func RecordVerification(method string, verified bool) {
	docproofVerificationsTotal.WithLabelValues(method, strconv.FormatBool(verified)).Inc()
}

// RecordAnchor records one anchoring run.
func RecordAnchor(finalized bool) {
	docproofAnchorsTotal.WithLabelValues(strconv.FormatBool(finalized)).Inc()
}

// RecordLedgerWrite records a ledger write attempt.
func RecordLedgerWrite(success bool) {
	if success {
		docproofLedgerWritesTotal.WithLabelValues("success").Inc()
	} else {
		docproofLedgerWritesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordHealthCheck records a health check probe result.
func RecordHealthCheck(success bool) {
	if success {
		docproofHealthChecksTotal.WithLabelValues("success").Inc()
	} else {
		docproofHealthChecksTotal.WithLabelValues("failure").Inc()
	}
}
