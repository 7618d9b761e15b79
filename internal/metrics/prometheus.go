package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector with client_golang vectors.
type Prometheus struct {
	outcomes     *prometheus.CounterVec
	runs         prometheus.Counter
	posted       prometheus.Counter
	runLatency   prometheus.Histogram
	breakerState *prometheus.GaugeVec
	breakerOpens *prometheus.CounterVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates a collector whose metrics live under namespace.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_outcomes_total",
				Help:      "Per-transaction reconciliation outcomes by status",
			},
			[]string{"status"},
		),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation batches executed",
		}),
		posted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_entries_posted_total",
			Help:      "Ledger entries created by reconciliation",
		}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_run_duration_seconds",
			Help:      "Reconciliation batch duration",
			Buckets:   prometheus.DefBuckets,
		}),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		breakerOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_opens_total",
				Help:      "Times the circuit breaker opened",
			},
			[]string{"name"},
		),
	}
}

// Register registers every metric with registry.
func (p *Prometheus) Register(registry prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.outcomes, p.runs, p.posted, p.runLatency, p.breakerState, p.breakerOpens} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordOutcome increments the outcome counter for status.
func (p *Prometheus) RecordOutcome(status string) {
	p.outcomes.WithLabelValues(status).Inc()
}

// RecordRun records one batch and the entries it posted.
func (p *Prometheus) RecordRun(duration time.Duration, posted int) {
	p.runs.Inc()
	p.posted.Add(float64(posted))
	p.runLatency.Observe(duration.Seconds())
}

// RecordBreakerState sets the breaker gauge and counts openings.
func (p *Prometheus) RecordBreakerState(name string, state BreakerState) {
	p.breakerState.WithLabelValues(name).Set(float64(state))
	if state == BreakerOpen {
		p.breakerOpens.WithLabelValues(name).Inc()
	}
}
