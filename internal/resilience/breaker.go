// Package resilience guards the ledger with a circuit breaker so a failing
// backend turns into fast creation failures.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logging"
	"github.com/cleared-dev/tally/internal/metrics"
	"github.com/cleared-dev/tally/internal/model"
)

var (
	// ErrBreakerOpen is returned while the breaker rejects calls.
	ErrBreakerOpen = errors.New("resilience: ledger circuit breaker is open")

	// ErrTimeout is returned when a ledger call exceeds CallTimeout.
	ErrTimeout = errors.New("resilience: ledger call timed out")
)

// BreakerConfig configures BreakerLedger.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32 `yaml:"max_requests"`
	// Interval clears the closed-state counts; zero never clears.
	Interval time.Duration `yaml:"interval"`
	// Timeout is how long the breaker stays open before half-opening.
	Timeout time.Duration `yaml:"timeout"`
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	// CallTimeout bounds each PostEntry call; zero disables it.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultBreakerConfig trips after 5 consecutive failures and retries after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		CallTimeout:         10 * time.Second,
	}
}

// BreakerLedger wraps a ledger.Ledger. Only PostEntry goes through the
// breaker; reads pass straight to the wrapped ledger.
type BreakerLedger struct {
	next    ledger.Ledger
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Collector
	logger  *logging.Logger
}

var _ ledger.Ledger = (*BreakerLedger)(nil)

// NewBreakerLedger creates a BreakerLedger named name.
func NewBreakerLedger(name string, next ledger.Ledger, cfg BreakerConfig, collector metrics.Collector, logger *logging.Logger) *BreakerLedger {
	bl := &BreakerLedger{
		next:    next,
		timeout: cfg.CallTimeout,
		metrics: metrics.OrNoOp(collector),
		logger:  logging.OrNop(logger).Named("resilience").With(zap.String("breaker", name)),
	}

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerConfig().ConsecutiveFailures
	}

	bl.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			bl.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			bl.metrics.RecordBreakerState(name, toBreakerState(to))
		},
	})
	return bl
}

// isHealthy reports whether err leaves the backend's health untouched.
// Rejected params and duplicates are answers from a working ledger.
func isHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, ledger.ErrInvalidEntry) ||
		errors.Is(err, ledger.ErrDuplicateTransaction)
}

func toBreakerState(s gobreaker.State) metrics.BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// PostEntry posts through the circuit breaker.
func (bl *BreakerLedger) PostEntry(ctx context.Context, ownerID string, p ledger.PostParams) (*model.LedgerEntry, error) {
	if bl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bl.timeout)
		defer cancel()
	}

	res, err := bl.cb.Execute(func() (interface{}, error) {
		return bl.next.PostEntry(ctx, ownerID, p)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			bl.logger.Warn("ledger call rejected", zap.String("owner", ownerID))
			return nil, ErrBreakerOpen
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, bl.timeout)
		}
		return nil, err
	}
	entry, _ := res.(*model.LedgerEntry)
	return entry, nil
}

// ReadMonth reads from the wrapped ledger.
func (bl *BreakerLedger) ReadMonth(ctx context.Context, ownerID, month string) ([]model.LedgerEntry, error) {
	return bl.next.ReadMonth(ctx, ownerID, month)
}

// State returns the current breaker state.
func (bl *BreakerLedger) State() metrics.BreakerState {
	return toBreakerState(bl.cb.State())
}
