package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest outcomes recorded by ObserveIngest.
const (
	IngestProcessed = "processed"
	IngestRejected  = "rejected"
	IngestHostError = "host_error"
	IngestStoreErr  = "store_error"
)

// Metrics holds the Prometheus collectors of the API. Each instance owns its
// registry, so tests can build as many as they like. A nil *Metrics is a no-op.
type Metrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingestCounter   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caidas",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "caidas",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ingestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "caidas",
				Name:      "image_ingest_total",
				Help:      "Image ingest attempts by outcome",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.ingestCounter,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveIngest records the outcome of one image ingest.
func (m *Metrics) ObserveIngest(result string) {
	if m == nil {
		return
	}
	m.ingestCounter.WithLabelValues(result).Inc()
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
