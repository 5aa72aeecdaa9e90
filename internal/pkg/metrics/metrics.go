package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toiletmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toiletmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toiletmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Map session metrics
	FetchCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toiletmap",
		Subsystem: "map",
		Name:      "fetch_cycles_total",
		Help:      "Viewport fetch cycles by outcome (applied, failed, stale)",
	}, []string{"outcome"})

	LiveMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toiletmap",
		Subsystem: "map",
		Name:      "live_markers",
		Help:      "Restroom markers currently installed across all sessions",
	})

	InvalidGeometry = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "toiletmap",
		Subsystem: "map",
		Name:      "invalid_geometry_total",
		Help:      "Records skipped because they had no usable coordinates",
	})

	LocationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toiletmap",
		Subsystem: "map",
		Name:      "location_requests_total",
		Help:      "Device location requests by outcome",
	}, []string{"outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toiletmap",
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Current number of open map sessions",
	})

	// Open-data client metrics
	OpenDataRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toiletmap",
		Subsystem: "opendata",
		Name:      "request_duration_seconds",
		Help:      "Duration of open-data records queries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"op"})

	OpenDataErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toiletmap",
		Subsystem: "opendata",
		Name:      "errors_total",
		Help:      "Total failed open-data queries",
	}, []string{"op"})

	// Mirror metrics
	MirrorRecordsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "toiletmap",
		Subsystem: "mirror",
		Name:      "records_upserted_total",
		Help:      "Total records written to the Postgres mirror",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toiletmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toiletmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toiletmap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool statistics into the db gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
