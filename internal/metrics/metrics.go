// Package metrics records reconciliation counters. Collector is the port;
// NoOp and Prometheus are the two implementations.
package metrics

import "time"

// Collector receives reconciliation and ledger events.
type Collector interface {
	// RecordOutcome counts one per-transaction outcome by status.
	RecordOutcome(status string)
	// RecordRun records one reconciliation batch.
	RecordRun(duration time.Duration, posted int)
	// RecordBreakerState reports the ledger circuit breaker state.
	RecordBreakerState(name string, state BreakerState)
}

// BreakerState mirrors the circuit breaker states.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOp discards every event.
type NoOp struct{}

func (NoOp) RecordOutcome(string)                    {}
func (NoOp) RecordRun(time.Duration, int)            {}
func (NoOp) RecordBreakerState(string, BreakerState) {}

// OrNoOp returns c, or NoOp when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOp{}
	}
	return c
}
