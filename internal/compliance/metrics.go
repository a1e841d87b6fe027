package compliance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SummaryRequests prometheus.Counter
	SummaryDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		SummaryRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_compliance_summary_requests_total",
			Help: "Residence compliance summaries produced.",
		}),
		SummaryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "domus_compliance_summary_duration_seconds",
			Help:    "Time spent assembling a residence compliance summary.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveSummary(start time.Time) {
	m.SummaryRequests.Inc()
	m.SummaryDuration.Observe(time.Since(start).Seconds())
}
