package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/metrics"
	"github.com/cleared-dev/tally/internal/model"
)

type fakeLedger struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	calls int
}

func (f *fakeLedger) PostEntry(ctx context.Context, ownerID string, p ledger.PostParams) (*model.LedgerEntry, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &model.LedgerEntry{ID: "2024-01-001", OwnerID: ownerID, Amount: p.Amount}, nil
}

func (f *fakeLedger) ReadMonth(context.Context, string, string) ([]model.LedgerEntry, error) {
	return []model.LedgerEntry{{ID: "2024-01-001"}}, nil
}

type stateRecorder struct {
	metrics.NoOp
	mu     sync.Mutex
	states []metrics.BreakerState
}

func (r *stateRecorder) RecordBreakerState(_ string, s metrics.BreakerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func postParams() ledger.PostParams {
	return ledger.PostParams{
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "Pix",
		Amount:      decimal.NewFromInt(45),
		Category:    model.CategoryExpense,
		MonthBucket: "2024-01",
	}
}

func TestBreakerLedger_PassThrough(t *testing.T) {
	next := &fakeLedger{}
	bl := NewBreakerLedger("ledger", next, DefaultBreakerConfig(), nil, nil)

	entry, err := bl.PostEntry(context.Background(), "u1", postParams())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-001", entry.ID)
	assert.Equal(t, metrics.BreakerClosed, bl.State())

	entries, err := bl.ReadMonth(context.Background(), "u1", "2024-01")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBreakerLedger_OpensAfterFailures(t *testing.T) {
	boom := errors.New("connection refused")
	next := &fakeLedger{err: boom}
	rec := &stateRecorder{}
	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 3
	bl := NewBreakerLedger("ledger", next, cfg, rec, nil)

	for i := 0; i < 3; i++ {
		_, err := bl.PostEntry(context.Background(), "u1", postParams())
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, metrics.BreakerOpen, bl.State())

	_, err := bl.PostEntry(context.Background(), "u1", postParams())
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 3, next.calls, "open breaker must not reach the ledger")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []metrics.BreakerState{metrics.BreakerOpen}, rec.states)
}

func TestBreakerLedger_HalfOpenRecovers(t *testing.T) {
	next := &fakeLedger{err: errors.New("down")}
	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 1
	cfg.Timeout = 20 * time.Millisecond
	bl := NewBreakerLedger("ledger", next, cfg, nil, nil)

	_, err := bl.PostEntry(context.Background(), "u1", postParams())
	require.Error(t, err)
	require.Equal(t, metrics.BreakerOpen, bl.State())

	next.mu.Lock()
	next.err = nil
	next.mu.Unlock()

	require.Eventually(t, func() bool {
		return bl.State() == metrics.BreakerHalfOpen
	}, time.Second, 5*time.Millisecond)

	_, err = bl.PostEntry(context.Background(), "u1", postParams())
	require.NoError(t, err)
	assert.Equal(t, metrics.BreakerClosed, bl.State())
}

func TestBreakerLedger_Timeout(t *testing.T) {
	next := &fakeLedger{delay: time.Second}
	cfg := DefaultBreakerConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	bl := NewBreakerLedger("ledger", next, cfg, nil, nil)

	_, err := bl.PostEntry(context.Background(), "u1", postParams())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBreakerLedger_RejectionsKeepBreakerClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid entry", ledger.Invalid([]ledger.ValidationError{{Field: "amount", Description: "must not be negative"}})},
		{"duplicate transaction", fmt.Errorf("posting txn-1: %w", ledger.ErrDuplicateTransaction)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &fakeLedger{err: tt.err}
			bl := NewBreakerLedger("ledger", next, DefaultBreakerConfig(), nil, nil)

			for i := 0; i < 5; i++ {
				_, err := bl.PostEntry(context.Background(), "u1", postParams())
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrBreakerOpen)
			}
			assert.Equal(t, metrics.BreakerClosed, bl.State())

			next.mu.Lock()
			next.err = nil
			next.mu.Unlock()

			entry, err := bl.PostEntry(context.Background(), "u1", postParams())
			require.NoError(t, err)
			assert.Equal(t, "2024-01-001", entry.ID)
			assert.Equal(t, 6, next.calls)
		})
	}
}
