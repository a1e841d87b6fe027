package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the regulation module. Activation swaps
// are the critical path; audit write failures are the one error class the
// service swallows, so they get their own counter.
type Metrics struct {
	RegulationsCreated prometheus.Counter
	ActivationSwaps    prometheus.Counter
	ActivationNoOps    prometheus.Counter
	AuditWriteFailures prometheus.Counter
	SetActiveDuration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		RegulationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_regulations_created_total",
			Help: "Total number of regulations created",
		}),
		ActivationSwaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_regulation_activation_swaps_total",
			Help: "Total number of committed activation swaps",
		}),
		ActivationNoOps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_regulation_activation_noops_total",
			Help: "Total number of activation calls that were already satisfied",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domus_regulation_audit_write_failures_total",
			Help: "Post-commit audit writes that failed and were logged instead",
		}),
		SetActiveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "domus_regulation_set_active_duration_seconds",
			Help:    "Duration of SetActive operations including the transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveSetActive records the duration of a SetActive operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveSetActive(start time.Time) {
	m.SetActiveDuration.Observe(time.Since(start).Seconds())
}
