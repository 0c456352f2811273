// Package metrics owns the process-wide request counters and latency
// histogram. A Recorder is created once at startup and lives until the
// process exits; counters only ever increase.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyBuckets are the fixed upper bounds, in milliseconds, of the
// request latency histogram.
var LatencyBuckets = []float64{100, 500, 1000, 5000, 10000}

// Recorder holds the service's metrics on a private registry, so its
// lifecycle is explicit and tests can build isolated instances.
// Increments are safe under concurrent use (prometheus counters are
// atomic).
type Recorder struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	webhookRequests *prometheus.CounterVec
	latency         prometheus.Histogram
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests.",
			},
			[]string{"path", "status"},
		),
		webhookRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_requests_total",
				Help: "Total webhook requests by terminal result.",
			},
			[]string{"result"},
		),
		latency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "request_latency_ms",
				Help:    "Request latency in milliseconds.",
				Buckets: LatencyBuckets,
			},
		),
	}
}

// ObserveRequest accounts one completed HTTP request.
func (r *Recorder) ObserveRequest(path string, status int, latencyMS float64) {
	r.httpRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	r.latency.Observe(latencyMS)
}

// RecordWebhook accounts one terminal webhook outcome.
func (r *Recorder) RecordWebhook(result string) {
	r.webhookRequests.WithLabelValues(result).Inc()
}

// Handler serves the Prometheus text exposition for this recorder.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test assertions.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
