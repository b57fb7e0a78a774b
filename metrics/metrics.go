// Package metrics exposes interceptor and API counters on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/tubeshim/models"
)

// Interception outcomes.
const (
	OutcomePassthrough = "passthrough"
	OutcomeTransformed = "transformed"
	OutcomeFallback    = "fallback"
)

const (
	interceptedName = "tubeshim_intercepted_total"
	outcomeLabel    = "outcome"
)

// Metrics holds all Prometheus collectors. The zero value is not usable;
// call New.
type Metrics struct {
	registry *prometheus.Registry

	Intercepted       *prometheus.CounterVec
	TransformDuration *prometheus.HistogramVec
	ShortFormRemoved  prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPRejected      *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors plus the
// tubeshim metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Intercepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: interceptedName,
				Help: "Intercepted responses by surface, route and outcome",
			},
			[]string{"surface", "route", outcomeLabel},
		),
		TransformDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tubeshim_transform_duration_seconds",
				Help:    "Time spent decoding, rewriting and re-encoding a response body",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"route"},
		),
		ShortFormRemoved: f.NewCounter(
			prometheus.CounterOpts{
				Name: "tubeshim_shortform_removed_total",
				Help: "Short-form entries removed from search results",
			},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubeshim_http_requests_total",
				Help: "API requests by route template and status",
			},
			[]string{"route", "status"},
		),
		HTTPRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubeshim_http_rejected_total",
				Help: "API requests refused by auth or rate limiting, by reason",
			},
			[]string{"reason"},
		),
	}
}

// ObserveIntercept counts one intercepted call.
func (m *Metrics) ObserveIntercept(surface, route, outcome string) {
	m.Intercepted.WithLabelValues(surface, route, outcome).Inc()
}

// ObserveTransform records a completed rewrite.
func (m *Metrics) ObserveTransform(route string, d time.Duration, removed int) {
	m.TransformDuration.WithLabelValues(route).Observe(d.Seconds())
	if removed > 0 {
		m.ShortFormRemoved.Add(float64(removed))
	}
}

// ObserveHTTP counts one API request.
func (m *Metrics) ObserveHTTP(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveRejection counts one API request refused before its handler ran.
func (m *Metrics) ObserveRejection(reason string) {
	m.HTTPRejected.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Snapshot sums interception outcomes across surfaces and routes.
func (m *Metrics) Snapshot() models.InterceptionStats {
	var stats models.InterceptionStats

	families, err := m.registry.Gather()
	if err != nil {
		return stats
	}
	for _, mf := range families {
		if mf.GetName() != interceptedName {
			continue
		}
		for _, metric := range mf.GetMetric() {
			v := metric.GetCounter().GetValue()
			for _, lp := range metric.GetLabel() {
				if lp.GetName() != outcomeLabel {
					continue
				}
				switch lp.GetValue() {
				case OutcomeTransformed:
					stats.Transformed += v
				case OutcomeFallback:
					stats.Fallback += v
				case OutcomePassthrough:
					stats.Passthrough += v
				}
			}
		}
	}
	return stats
}
