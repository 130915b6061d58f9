package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lpg"

// Checkout outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeReplayed     = "replayed"
	OutcomeEmptyCart    = "empty_cart"
	OutcomeUnavailable  = "unavailable"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeInProgress   = "in_progress"
	OutcomeError        = "error"
)

// Metrics owns the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry      *prometheus.Registry
	Requests      *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	Checkouts     *prometheus.CounterVec
	ReservedUnits prometheus.Counter
	LowStock      prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		ReservedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reserved_units_total",
			Help:      "Cylinder units removed from stock by committed orders.",
		}),
		LowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_events_total",
			Help:      "Products that dropped below the low stock threshold.",
		}),
	}

	registry.MustRegister(m.Requests, m.Latency, m.Checkouts, m.ReservedUnits, m.LowStock)
	return m
}

// NewDefault builds a registry that also carries the Go runtime and process
// collectors.
func NewDefault() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(registry)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddReservedUnits(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.ReservedUnits.Add(float64(units))
}

func (m *Metrics) ObserveLowStock() {
	if m == nil {
		return
	}
	m.LowStock.Inc()
}
