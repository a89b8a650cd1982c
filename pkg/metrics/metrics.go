package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the library's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "library",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "library",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	reservationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "reservations",
			Name:      "operations_total",
			Help:      "Reservation lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	sweepMarked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "reservations",
			Name:      "marked_overdue_total",
			Help:      "Reservations moved to overdue by the sweep.",
		},
	)

	sweepLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "library",
			Subsystem: "reservations",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the last completed overdue sweep.",
		},
	)

	catalogLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "library",
			Subsystem: "catalog",
			Name:      "lookups_total",
			Help:      "Open Library lookups by outcome.",
		},
		[]string{"outcome"},
	)

	catalogLookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "library",
			Subsystem: "catalog",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of Open Library lookups.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	enrichRetryQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "library",
			Subsystem: "catalog",
			Name:      "enrich_retry_queue_size",
			Help:      "Books waiting for another enrichment attempt.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		reservationOps,
		sweepMarked,
		sweepLastRun,
		catalogLookups,
		catalogLookupDuration,
		enrichRetryQueue,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func ObserveReservationOp(operation, outcome string) {
	reservationOps.WithLabelValues(operation, outcome).Inc()
}

// ObserveSweep records one completed overdue sweep that marked n reservations.
func ObserveSweep(n int64, at time.Time) {
	sweepMarked.Add(float64(n))
	sweepLastRun.Set(float64(at.Unix()))
}

func ObserveLookup(outcome string, duration time.Duration) {
	catalogLookups.WithLabelValues(outcome).Inc()
	catalogLookupDuration.Observe(duration.Seconds())
}

func SetRetryQueueSize(n int) {
	enrichRetryQueue.Set(float64(n))
}
