package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_dashboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"route", "status"},
	)

	ReportsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_dashboard_reports_parsed_total",
			Help: "Report documents extracted, by outcome",
		},
		[]string{"result"},
	)

	CatalogBuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_dashboard_catalog_builds_total",
			Help: "Total metadata catalog rebuilds",
		},
	)

	CatalogBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_dashboard_catalog_build_duration_seconds",
			Help:    "Metadata catalog rebuild duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	CatalogReports = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rag_dashboard_catalog_reports",
			Help: "Reports in the current catalog snapshot",
		},
	)

	CatalogInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_dashboard_catalog_invalidations_total",
			Help: "Total metadata catalog invalidations",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_dashboard_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_dashboard_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ProxyFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_dashboard_proxy_frames_total",
			Help: "Frames forwarded by the chat proxy",
		},
		[]string{"direction"},
	)

	BackendDialFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rag_dashboard_backend_dial_failures_total",
			Help: "Failed attempts to reach the inference backend",
		},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rag_dashboard_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(ReportsParsed)
		prometheus.MustRegister(CatalogBuilds)
		prometheus.MustRegister(CatalogBuildDuration)
		prometheus.MustRegister(CatalogReports)
		prometheus.MustRegister(CatalogInvalidations)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(ProxyFrames)
		prometheus.MustRegister(BackendDialFailures)
		prometheus.MustRegister(BreakerState)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request latency labelled by the matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		RequestDuration.
			WithLabelValues(c.Route().Path, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())

		return err
	}
}
