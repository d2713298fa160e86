// Package metrics exposes Prometheus instrumentation for the API: HTTP
// request metrics plus counters for order and recommendation events.
//
// Wire it up once in cmd/api:
//
//	m := metrics.New("pharmacy", reg)
//	r.Use(m.GinMiddleware())
//	r.GET("/metrics", metrics.Handler(reg))
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge

	ordersCreated   prometheus.Counter
	orderAmount     prometheus.Histogram
	statusChanges   *prometheus.CounterVec
	notifyFailures  *prometheus.CounterVec
	recommendations *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them, together
// with the Go and process collectors, on reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders created.",
		}),
		orderAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "amount",
			Help:      "Order totals.",
			Buckets:   []float64{50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000},
		}),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "status_changes_total",
				Help:      "Order status transitions.",
			},
			[]string{"from", "to"},
		),
		notifyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "failures_total",
				Help:      "Notifications that could not be delivered.",
			},
			[]string{"kind"},
		),
		recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "recommend",
				Name:      "requests_total",
				Help:      "Recommendation lists served.",
			},
			[]string{"flow", "cold_start"},
		),
	}
	reg.MustRegister(
		m.requestDuration, m.requestTotal, m.inFlight,
		m.ordersCreated, m.orderAmount, m.statusChanges,
		m.notifyFailures, m.recommendations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// GinMiddleware records request count, duration and in-flight requests.
// Unmatched routes are labelled "unmatched" to bound cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// OrderCreated counts an order and observes its total.
func (m *Metrics) OrderCreated(_ context.Context, amount float64) {
	m.ordersCreated.Inc()
	m.orderAmount.Observe(amount)
}

// StatusChanged counts a status transition.
func (m *Metrics) StatusChanged(_ context.Context, from, to string) {
	m.statusChanges.WithLabelValues(from, to).Inc()
}

// NotificationFailed counts a dropped notification.
func (m *Metrics) NotificationFailed(_ context.Context, kind string) {
	m.notifyFailures.WithLabelValues(kind).Inc()
}

// RecommendationServed counts a recommendation list.
func (m *Metrics) RecommendationServed(flow string, coldStart bool) {
	m.recommendations.WithLabelValues(flow, strconv.FormatBool(coldStart)).Inc()
}
