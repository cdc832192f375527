package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sealchainRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealchain_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	sealchainRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sealchain_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	sealchainAuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealchain_audits_total",
		Help: "Total chain audits by kind and result.",
	}, []string{"kind", "result"})

	sealchainReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealchain_replays_total",
		Help: "Total stateless replay verifications by kind and result.",
	}, []string{"kind", "result"})

	sealchainIncidentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealchain_incidents_total",
		Help: "Total chain integrity incidents by severity.",
	}, []string{"severity"})

	sealchainAlertDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sealchain_alert_deliveries_total",
		Help: "Total alert webhook deliveries by success status.",
	}, []string{"status"})

	sealchainWatchedAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sealchain_watched_assets",
		Help: "Number of assets the watcher audits each tick.",
	})

	sealchainDependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sealchain_dependency_up",
		Help: "Whether a dependency answered its last health probe (1 = up).",
	}, []string{"dependency"})
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

		sealchainRequestsTotal.WithLabelValues(method, path, status).Inc()
		sealchainRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAudit records one chain audit outcome. Wire into the audit
// service's metrics recorder.
func RecordAudit(kind string, valid bool) {
	sealchainAuditsTotal.WithLabelValues(kind, resultLabel(valid)).Inc()
}

// RecordReplay records one stateless replay verification outcome.
func RecordReplay(kind string, valid bool) {
	sealchainReplaysTotal.WithLabelValues(kind, resultLabel(valid)).Inc()
}

// RecordIncident records one raised incident.
func RecordIncident(severity string) {
	sealchainIncidentsTotal.WithLabelValues(severity).Inc()
}

// RecordAlertDelivery records an alert webhook delivery attempt.
func RecordAlertDelivery(success bool) {
	if success {
		sealchainAlertDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		sealchainAlertDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

// SetWatchedAssets sets the watched-assets gauge.
func SetWatchedAssets(count int) {
	sealchainWatchedAssets.Set(float64(count))
}

// SetDependencyUp records the outcome of a dependency health probe.
func SetDependencyUp(name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	sealchainDependencyUp.WithLabelValues(name).Set(v)
}

func resultLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}
