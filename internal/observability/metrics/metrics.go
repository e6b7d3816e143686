// Package metrics exposes Prometheus instrumentation for the HTTP
// surface and the quote save sequencer.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments inbound HTTP traffic.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP collectors on the given registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rampline",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rampline",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	if reg != nil {
		reg.MustRegister(m.requestsTotal, m.requestDuration)
	}
	return m
}

// GinMiddleware records request counts and latency per route.
func (m *HTTPMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(route, method, status).Inc()
		m.requestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// SyncMetrics counts quote save outcomes by terminal state.
type SyncMetrics struct {
	savesTotal *prometheus.CounterVec
}

// NewSyncMetrics registers the sequencer collectors on the given registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		savesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rampline",
			Subsystem: "sync",
			Name:      "saves_total",
			Help:      "Quote saves by terminal sequencer state.",
		}, []string{"state"}),
	}

	if reg != nil {
		reg.MustRegister(m.savesTotal)
	}
	return m
}

// RecordSave increments the save counter for the terminal state.
func (m *SyncMetrics) RecordSave(state string) {
	state = strings.TrimSpace(state)
	if state == "" {
		state = "unknown"
	}
	m.savesTotal.WithLabelValues(state).Inc()
}
