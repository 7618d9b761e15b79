package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Outcomes(t *testing.T) {
	p := NewPrometheus("tally")
	p.RecordOutcome("success")
	p.RecordOutcome("success")
	p.RecordOutcome("no_rule")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.outcomes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.outcomes.WithLabelValues("no_rule")))
}

func TestPrometheus_Run(t *testing.T) {
	p := NewPrometheus("tally")
	p.RecordRun(150*time.Millisecond, 4)
	p.RecordRun(50*time.Millisecond, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.runs))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.posted))
	assert.Equal(t, 1, testutil.CollectAndCount(p.runLatency))
}

func TestPrometheus_Breaker(t *testing.T) {
	p := NewPrometheus("tally")
	p.RecordBreakerState("ledger", BreakerOpen)
	p.RecordBreakerState("ledger", BreakerHalfOpen)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.breakerState.WithLabelValues("ledger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.breakerOpens.WithLabelValues("ledger")))
}

func TestPrometheus_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus("tally")
	require.NoError(t, p.Register(reg))
	assert.Error(t, p.Register(reg), "second registration must fail")

	p.RecordOutcome("success")
	n, err := testutil.GatherAndCount(reg, "tally_reconcile_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOp{}, OrNoOp(nil))
	p := NewPrometheus("x")
	assert.Same(t, p, OrNoOp(p))
}
