package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Metrics holds the API's Prometheus collectors on a private registry.
type Metrics struct {
	reg          *prometheus.Registry
	computed     *prometheus.CounterVec
	duration     prometheus.Histogram
	syncFailures prometheus.Counter
}

// NewMetrics registers the API collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		computed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_assessments_computed_total",
				Help: "Total number of assessments scored, by overall risk tier",
			},
			[]string{"tier"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "compliance_compute_duration_seconds",
				Help:    "Duration of scoring one submission in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		syncFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "compliance_salesforce_sync_failures_total",
				Help: "Total number of leads that failed to sync to Salesforce",
			},
		),
	}
}

func (m *Metrics) observeCompute(tier model.RiskTier, elapsed time.Duration) {
	m.computed.WithLabelValues(string(tier)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
