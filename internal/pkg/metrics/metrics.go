// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecshop"

// Metrics groups the collectors recorded by the HTTP layer and the domain
// services.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	CartOps      *prometheus.CounterVec
	OrdersPlaced *prometheus.CounterVec
	Published    *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CartOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cart", Name: "operations_total",
			Help: "Cart engine operations by operation and result.",
		}, []string{"op", "result"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "placed_total",
			Help: "Orders placed by order type and cart clearing outcome.",
		}, []string{"order_type", "cart"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "journal", Name: "published_total",
			Help: "Journal events handed to the broker by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration, m.CartOps, m.OrdersPlaced, m.Published,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CartOp records one cart operation. A nil receiver is a no-op so services
// can run without metrics.
func (m *Metrics) CartOp(op string, err error) {
	if m == nil {
		return
	}
	m.CartOps.WithLabelValues(op, result(err)).Inc()
}

// OrderPlaced records a successful order placement.
func (m *Metrics) OrderPlaced(orderType, cartOutcome string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(orderType, cartOutcome).Inc()
}

// PublishResult records a broker publish attempt.
func (m *Metrics) PublishResult(err error) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(result(err)).Inc()
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
