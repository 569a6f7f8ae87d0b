// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderhub"

// Metrics implements the observer hooks of the llm, resolve and pipeline
// packages.
type Metrics struct {
	lines        *prometheus.CounterVec
	resolverHits *prometheus.CounterVec
	aiRequests   *prometheus.CounterVec
	aiDuration   *prometheus.HistogramVec
	sinkErrors   *prometheus.CounterVec
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Order lines processed, by resulting action.",
		}, []string{"action"}),
		resolverHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_hits_total",
			Help:      "Product tokens resolved, by winning strategy.",
		}, []string{"strategy"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "OpenAI operations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "OpenAI operation latency including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 12, 20},
		}, []string{"operation"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed deliveries to persistence and escalation sinks.",
		}, []string{"sink"}),
	}
	reg.MustRegister(m.lines, m.resolverHits, m.aiRequests, m.aiDuration, m.sinkErrors)
	return m
}

func (m *Metrics) ObserveAI(operation, outcome string, elapsed time.Duration) {
	m.aiRequests.WithLabelValues(operation, outcome).Inc()
	m.aiDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveResolverHit(strategy string) {
	m.resolverHits.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveLine(action string) {
	m.lines.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
