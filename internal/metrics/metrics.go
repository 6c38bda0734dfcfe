// Package metrics exports detection counters and gauges to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/venue-locator/internal/resilience"
)

const namespace = "venue_locator"

// Metrics records engine activity. A nil *Metrics is a no-op.
type Metrics struct {
	reg         prometheus.Registerer
	resolutions *prometheus.CounterVec
	changes     prometheus.Counter
	duration    prometheus.Histogram
}

// New creates the engine collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolutions by detection method.",
		}, []string{"method"}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "venue_changes_total",
			Help:      "Resolutions that changed the current venue.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time to resolve a fix, including remote lookups.",
			Buckets:   []float64{.001, .005, .025, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
	reg.MustRegister(m.resolutions, m.changes, m.duration)
	return m
}

// ObserveResolve records one resolution.
func (m *Metrics) ObserveResolve(method string, changed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(method).Inc()
	if changed {
		m.changes.Inc()
	}
	m.duration.Observe(elapsed.Seconds())
}

// TrackCatalog exports the catalog size as a gauge read at scrape time.
func (m *Metrics) TrackCatalog(size func() int) {
	if m == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_venues",
		Help:      "Venues in the local catalog.",
	}, func() float64 { return float64(size()) }))
}

// TrackBreakers exports the state of every breaker in sb.
func (m *Metrics) TrackBreakers(sb *resilience.ServiceBreakers) {
	if m == nil {
		return
	}
	m.reg.MustRegister(&breakerCollector{breakers: sb})
}

var breakerDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "circuit_breaker_state"),
	"Circuit breaker state: 0 closed, 1 open, 2 half-open.",
	[]string{"breaker"}, nil,
)

// breakerCollector reads breaker states at scrape time, so breakers added
// after registration are included.
type breakerCollector struct {
	breakers *resilience.ServiceBreakers
}

func (c *breakerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- breakerDesc
}

func (c *breakerCollector) Collect(ch chan<- prometheus.Metric) {
	for name, state := range c.breakers.States() {
		ch <- prometheus.MustNewConstMetric(breakerDesc, prometheus.GaugeValue, float64(state), name)
	}
}
