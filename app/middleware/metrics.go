package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorCodeLocal is the fiber local handlers set to the error code they answered with
const ErrorCodeLocal = "error_code"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callcenter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "callcenter",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callcenter",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// error codes are a closed set, so they are safe as a label
	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callcenter",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Error responses by route and business error code",
		},
		[]string{"route", "code"},
	)
)

// Metrics returns a Fiber v3 middleware that records Prometheus request metrics.
// Routes are labelled by template, never by raw path.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(c.Method(), route, status).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), route, status).Observe(time.Since(start).Seconds())

		if code, ok := c.Locals(ErrorCodeLocal).(string); ok && code != "" {
			httpErrorsTotal.WithLabelValues(route, code).Inc()
		}

		return err
	}
}
