package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and review workflow.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	decisionsRecordedTotal   *prometheus.CounterVec
	batchesPublishedTotal    prometheus.Counter
	batchesCompletedTotal    *prometheus.CounterVec
	publishFailuresTotal     prometheus.Counter
	integrityViolationsTotal prometheus.Counter
	assetsDeletedTotal       prometheus.Counter
	assetDeleteFailuresTotal prometheus.Counter
	monitorsWatching         prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "review_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		decisionsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "decisions_recorded_total",
				Help:      "Total number of reviewer decisions recorded by outcome.",
			},
			[]string{"outcome"},
		),
		batchesPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "batches_published_total",
				Help:      "Total number of batches published to the review channel.",
			},
		),
		batchesCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "batches_completed_total",
				Help:      "Total number of monitors finished, by result (complete or timed_out).",
			},
			[]string{"result"},
		),
		publishFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "publish_failures_total",
				Help:      "Total number of per-item review channel publish failures.",
			},
		),
		integrityViolationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "integrity_violations_total",
				Help:      "Total number of batches blocked by fingerprint mismatch.",
			},
		),
		assetsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "assets_deleted_total",
				Help:      "Total number of rejected remote assets deleted.",
			},
		),
		assetDeleteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "review_engine",
				Name:      "asset_delete_failures_total",
				Help:      "Total number of remote asset deletions that failed.",
			},
		),
		monitorsWatching: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "review_engine",
				Name:      "monitors_watching",
				Help:      "Current number of batch completion monitors in the watching state.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.decisionsRecordedTotal,
		m.batchesPublishedTotal,
		m.batchesCompletedTotal,
		m.publishFailuresTotal,
		m.integrityViolationsTotal,
		m.assetsDeletedTotal,
		m.assetDeleteFailuresTotal,
		m.monitorsWatching,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDecisionRecorded(approved bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	m.decisionsRecordedTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncBatchPublished() {
	if m == nil {
		return
	}
	m.batchesPublishedTotal.Inc()
}

func (m *Metrics) IncBatchCompleted(result string) {
	if m == nil {
		return
	}
	resultLabel := strings.TrimSpace(strings.ToLower(result))
	if resultLabel == "" {
		resultLabel = "unknown"
	}
	m.batchesCompletedTotal.WithLabelValues(resultLabel).Inc()
}

func (m *Metrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailuresTotal.Inc()
}

func (m *Metrics) IncIntegrityViolation() {
	if m == nil {
		return
	}
	m.integrityViolationsTotal.Inc()
}

func (m *Metrics) AddAssetsDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assetsDeletedTotal.Add(float64(n))
}

func (m *Metrics) AddAssetDeleteFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assetDeleteFailuresTotal.Add(float64(n))
}

func (m *Metrics) IncMonitorsWatching() {
	if m == nil {
		return
	}
	m.monitorsWatching.Inc()
}

func (m *Metrics) DecMonitorsWatching() {
	if m == nil {
		return
	}
	m.monitorsWatching.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
