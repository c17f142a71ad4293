// Package metrics exposes Prometheus metrics for the stub inventory servers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeviceCounter is the subset of db.DB needed to collect device metrics.
type DeviceCounter interface {
	CountByType() (map[string]int, error)
}

// Metrics holds the HTTP instruments for one registry.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

// deviceCollector queries the store on each scrape to report device counts
// broken down by type.
type deviceCollector struct {
	db   DeviceCounter
	desc *prometheus.Desc
}

func (c *deviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *deviceCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.db.CountByType()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	for typ, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), typ)
	}
}

// Register creates the HTTP instruments and the device collector and
// registers them, along with Go runtime and process collectors, with reg.
func Register(reg prometheus.Registerer, db DeviceCounter) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_http_requests_total",
				Help: "Total number of HTTP requests by server, method, route, and status code.",
			},
			[]string{"server", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds by server, method, and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"server", "method", "path"},
		),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.requestsInFlight,
		&deviceCollector{
			db: db,
			desc: prometheus.NewDesc(
				"inventory_devices_total",
				"Number of devices in the inventory, partitioned by type.",
				[]string{"type"},
				nil,
			),
		},
	)
	return m
}

// Handler returns the HTTP handler for the /metrics endpoint of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps next to record HTTP metrics. pattern should be the route
// pattern (e.g. "/devices/{id}") so the path label has bounded cardinality.
func (m *Metrics) Middleware(server, pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			m.requestsInFlight.Dec()
			m.requestsTotal.WithLabelValues(server, r.Method, pattern, strconv.Itoa(rw.status)).Inc()
			m.requestDuration.WithLabelValues(server, r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
